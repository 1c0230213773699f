package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Node is the document-stable wrapper around one html.Node.
type Node struct {
	doc *Document
	n   *html.Node
}

// Document returns the owning document.
func (e *Node) Document() *Document { return e.doc }

// Raw exposes the underlying parse-tree node.
func (e *Node) Raw() *html.Node { return e.n }

// IsElement reports whether e is an element node.
func (e *Node) IsElement() bool { return e != nil && e.n.Type == html.ElementNode }

// TagName returns the lower-cased tag name, or "" for non-elements.
func (e *Node) TagName() string {
	if !e.IsElement() {
		return ""
	}
	return strings.ToLower(e.n.Data)
}

// ID returns the id attribute.
func (e *Node) ID() string { return e.Attribute("id") }

// Attribute returns the value of key, or "" when absent.
func (e *Node) Attribute(key string) string {
	v, _ := e.LookupAttribute(key)
	return v
}

// LookupAttribute returns the value of key and whether it is present.
func (e *Node) LookupAttribute(key string) (string, bool) {
	if !e.IsElement() {
		return "", false
	}
	for _, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute sets key to val, replacing any existing value.
func (e *Node) SetAttribute(key, val string) {
	if !e.IsElement() {
		return
	}
	for i, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == key {
			e.n.Attr[i].Val = val
			return
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttribute deletes key if present.
func (e *Node) RemoveAttribute(key string) {
	if !e.IsElement() {
		return
	}
	out := e.n.Attr[:0]
	for _, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	e.n.Attr = out
}

// ClassList returns the class tokens in DOM order.
func (e *Node) ClassList() []string {
	return strings.Fields(e.Attribute("class"))
}

// HasClass reports whether name is one of the class tokens.
func (e *Node) HasClass(name string) bool {
	for _, c := range e.ClassList() {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass appends name to the class list unless already present.
func (e *Node) AddClass(name string) {
	if !e.IsElement() || e.HasClass(name) {
		return
	}
	e.SetAttribute("class", strings.Join(append(e.ClassList(), name), " "))
}

// RemoveClass drops every occurrence of name. The class attribute is removed
// when no tokens remain.
func (e *Node) RemoveClass(name string) {
	if !e.IsElement() {
		return
	}
	if _, ok := e.LookupAttribute("class"); !ok {
		return
	}
	var keep []string
	for _, c := range e.ClassList() {
		if c != name {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		e.RemoveAttribute("class")
		return
	}
	e.SetAttribute("class", strings.Join(keep, " "))
}

// Parent returns the parent node, or nil at the top of a tree.
func (e *Node) Parent() *Node {
	if e == nil || e.n.Parent == nil {
		return nil
	}
	return e.doc.Wrap(e.n.Parent)
}

// Connected reports whether e is attached to its document.
func (e *Node) Connected() bool {
	if e == nil {
		return false
	}
	for cur := e.n; cur != nil; cur = cur.Parent {
		if cur == e.doc.root {
			return true
		}
	}
	return false
}

// IsDocumentElement reports whether e is the document's <html> element.
func (e *Node) IsDocumentElement() bool {
	return e.IsElement() && e.n.Parent == e.doc.root
}

// Contains reports whether other is e or a descendant of e.
func (e *Node) Contains(other *Node) bool {
	if e == nil || other == nil {
		return false
	}
	for cur := other.n; cur != nil; cur = cur.Parent {
		if cur == e.n {
			return true
		}
	}
	return false
}

// Path returns e followed by its element ancestors, innermost first, ending
// at the document element when e is connected.
func (e *Node) Path() []*Node {
	var out []*Node
	for cur := e.n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode {
			out = append(out, e.doc.Wrap(cur))
		}
	}
	return out
}

// AppendChild moves child under e, detaching it from any previous parent.
func (e *Node) AppendChild(child *Node) {
	if e == nil || child == nil {
		return
	}
	if child.n.Parent != nil {
		child.n.Parent.RemoveChild(child.n)
	}
	e.n.AppendChild(child.n)
}

// AppendText appends a text node.
func (e *Node) AppendText(s string) {
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

// Remove detaches e from its parent. The wrapper stays valid.
func (e *Node) Remove() {
	if e == nil || e.n.Parent == nil {
		return
	}
	e.n.Parent.RemoveChild(e.n)
}

// HTML serializes e and its subtree.
func (e *Node) HTML() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, e.n); err != nil {
		return ""
	}
	return buf.String()
}
