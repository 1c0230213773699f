// Package dom models a live page context on top of golang.org/x/net/html.
//
// A Document hands out exactly one *Node wrapper per underlying html.Node so
// wrappers can be compared and used as map keys. Layout is not computed here:
// the host runtime reports element boxes with SetBox and the document answers
// hit-tests from those boxes.
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed page plus the per-page state the in-page component
// needs: stable node wrappers, host-reported layout boxes and singleton slots.
type Document struct {
	root *html.Node
	url  string

	nodes map[*html.Node]*Node
	boxes map[*Node]Rect

	slotsMu sync.Mutex
	slots   map[any]any
}

// Parse reads an HTML document. pageURL is reported as the document URL.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		root:  root,
		url:   pageURL,
		nodes: make(map[*html.Node]*Node),
		boxes: make(map[*Node]Rect),
		slots: make(map[any]any),
	}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(markup, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(markup), pageURL)
}

// URL returns the address the document was loaded from.
func (d *Document) URL() string { return d.url }

// Wrap returns the stable wrapper for n. It returns nil for a nil node.
func (d *Document) Wrap(n *html.Node) *Node {
	if n == nil {
		return nil
	}
	if w, ok := d.nodes[n]; ok {
		return w
	}
	w := &Node{doc: d, n: n}
	d.nodes[n] = w
	return w
}

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.Wrap(c)
		}
	}
	return nil
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *Node { return d.Wrap(findFirst(d.root, "head")) }

// Body returns the <body> element, or nil when the document has none.
func (d *Document) Body() *Node { return d.Wrap(findFirst(d.root, "body")) }

// Title returns the trimmed text of the first <title> in <head>.
func (d *Document) Title() string {
	head := findFirst(d.root, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil {
		return ""
	}
	var b strings.Builder
	for c := t.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// CreateElement returns a new detached element.
func (d *Document) CreateElement(tag string) *Node {
	tag = strings.ToLower(tag)
	return d.Wrap(&html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))})
}

// GetElementByID returns the first connected element with the given id.
func (d *Document) GetElementByID(id string) *Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return d.Wrap(found)
}

// Query returns every element matching the CSS selector in document order.
func (d *Document) Query(selector string) ([]*Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	matches := sel.MatchAll(d.root)
	out := make([]*Node, 0, len(matches))
	for _, m := range matches {
		out = append(out, d.Wrap(m))
	}
	return out, nil
}

// QueryOne returns the first element matching selector, or nil.
func (d *Document) QueryOne(selector string) (*Node, error) {
	nodes, err := d.Query(selector)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// Render serializes the current document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// LoadOrStore returns the value stored under key, creating it with create on
// first use. loaded reports whether the value already existed.
func (d *Document) LoadOrStore(key any, create func() any) (value any, loaded bool) {
	d.slotsMu.Lock()
	defer d.slotsMu.Unlock()
	if v, ok := d.slots[key]; ok {
		return v, true
	}
	v := create()
	d.slots[key] = v
	return v, false
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	walk(n, func(cur *html.Node) bool {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return false
		}
		return true
	})
	return res
}

// walk visits n and its descendants depth-first until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}
