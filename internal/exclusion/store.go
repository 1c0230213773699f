// Package exclusion tracks the elements the user removed from extraction.
package exclusion

import (
	"github.com/hyperifyio/ptsnap/internal/descriptor"
	"github.com/hyperifyio/ptsnap/internal/dom"
)

// MarkerClass is added to every excluded element so page styles can show it.
const MarkerClass = "pts-excluded"

// Handle identifies one entry for the lifetime of a Store.
type Handle uint64

// Entry is one excluded element.
type Entry struct {
	Handle     Handle
	Node       *dom.Node
	Descriptor string
}

// Store is the ordered set of excluded elements of one document. It is not
// safe for concurrent use; the page loop owns it.
type Store struct {
	next    Handle
	order   []Handle
	entries map[Handle]Entry
	byNode  map[*dom.Node]Handle
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entries: make(map[Handle]Entry),
		byNode:  make(map[*dom.Node]Handle),
	}
}

// Add excludes n. It fails for non-elements, the document element, detached
// elements and elements already excluded.
func (s *Store) Add(n *dom.Node) (string, bool) {
	if !n.IsElement() || n.IsDocumentElement() || !n.Connected() {
		return "", false
	}
	if _, ok := s.byNode[n]; ok {
		return "", false
	}
	s.next++
	h := s.next
	desc := descriptor.Describe(n)
	s.entries[h] = Entry{Handle: h, Node: n, Descriptor: desc}
	s.byNode[n] = h
	s.order = append(s.order, h)
	n.AddClass(MarkerClass)
	return desc, true
}

// Remove restores n. The stored descriptor is returned, or a fresh one if
// the stored value was empty.
func (s *Store) Remove(n *dom.Node) (string, bool) {
	h, ok := s.byNode[n]
	if !ok {
		return "", false
	}
	e := s.drop(h)
	e.Node.RemoveClass(MarkerClass)
	if e.Descriptor == "" {
		return descriptor.Describe(n), true
	}
	return e.Descriptor, true
}

// ResetAll clears the store and every marker. It returns how many entries
// were cleared.
func (s *Store) ResetAll() int {
	n := len(s.order)
	for _, h := range s.order {
		s.entries[h].Node.RemoveClass(MarkerClass)
	}
	s.order = nil
	s.entries = make(map[Handle]Entry)
	s.byNode = make(map[*dom.Node]Handle)
	return n
}

// Prune drops entries whose element is no longer attached to the document.
func (s *Store) Prune() int {
	var stale []Handle
	for _, h := range s.order {
		if !s.entries[h].Node.Connected() {
			stale = append(stale, h)
		}
	}
	for _, h := range stale {
		e := s.drop(h)
		e.Node.RemoveClass(MarkerClass)
	}
	return len(stale)
}

func (s *Store) drop(h Handle) Entry {
	e := s.entries[h]
	delete(s.entries, h)
	delete(s.byNode, e.Node)
	for i, cur := range s.order {
		if cur == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return e
}

// Len returns the number of excluded elements.
func (s *Store) Len() int { return len(s.order) }

// Contains reports whether n is excluded.
func (s *Store) Contains(n *dom.Node) bool {
	_, ok := s.byNode[n]
	return ok
}

// Lookup returns the entry for h.
func (s *Store) Lookup(h Handle) (Entry, bool) {
	e, ok := s.entries[h]
	return e, ok
}

// Entries returns the entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, s.entries[h])
	}
	return out
}

// Nodes returns the excluded elements in insertion order.
func (s *Store) Nodes() []*dom.Node {
	out := make([]*dom.Node, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, s.entries[h].Node)
	}
	return out
}

// Descriptors returns the descriptors in insertion order. The result is
// never nil so it encodes as a JSON array.
func (s *Store) Descriptors() []string {
	out := make([]string, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, s.entries[h].Descriptor)
	}
	return out
}

// MarkerClass returns the class name added to excluded elements.
func (s *Store) MarkerClass() string { return MarkerClass }
