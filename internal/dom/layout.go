package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Rect is a viewport-relative layout box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point lies inside r. The right and bottom
// edges are exclusive.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.Width && y < r.Y+r.Height
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// SetBox records the layout box the host runtime computed for e.
func (d *Document) SetBox(e *Node, r Rect) {
	if e == nil {
		return
	}
	d.boxes[e] = r
}

// ClearBox forgets the layout box of e.
func (d *Document) ClearBox(e *Node) { delete(d.boxes, e) }

// Box returns the last reported layout box of e.
func (d *Document) Box(e *Node) (Rect, bool) {
	if e == nil {
		return Rect{}, false
	}
	r, ok := d.boxes[e]
	return r, ok
}

// HitTest returns the hit-test path at (x, y): the deepest rendered element
// whose box contains the point, followed by its ancestors. Later elements in
// document order paint on top and win ties. Without any matching box the
// path starts at <body>.
func (d *Document) HitTest(x, y float64) []*Node {
	var (
		best      *Node
		bestDepth = -1
	)
	var visit func(n *html.Node, depth int)
	visit = func(n *html.Node, depth int) {
		if n.Type == html.ElementNode {
			w := d.Wrap(n)
			if w.Hidden() {
				return
			}
			if r, ok := d.boxes[w]; ok && !r.Empty() && r.Contains(x, y) && depth >= bestDepth {
				best, bestDepth = w, depth
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, depth+1)
		}
	}
	visit(d.root, 0)
	if best == nil {
		best = d.Body()
	}
	if best == nil {
		return nil
	}
	return best.Path()
}

// BoxAttribute carries a layout box recorded by a headless renderer as
// "x,y,width,height" in CSS pixels.
const BoxAttribute = "data-pts-box"

// ImportBoxes moves every BoxAttribute in the document into the layout box
// table and strips the attribute. Malformed values are dropped. It returns
// the number of boxes imported.
func (d *Document) ImportBoxes() int {
	n := 0
	walk(d.root, func(h *html.Node) bool {
		if h.Type != html.ElementNode {
			return true
		}
		e := d.Wrap(h)
		raw, ok := e.LookupAttribute(BoxAttribute)
		if !ok {
			return true
		}
		e.RemoveAttribute(BoxAttribute)
		if r, ok := parseBox(raw); ok {
			d.SetBox(e, r)
			n++
		}
		return true
	})
	return n
}

func parseBox(s string) (Rect, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, false
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rect{}, false
		}
		v[i] = f
	}
	return Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, true
}
