package inpage

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/ptsnap/internal/dom"
)

// WireInput is the JSON form of an Input used by remote hosts. Target is a
// CSS selector whose first match supplies the hit-test path; without it the
// document is hit-tested at X, Y. Boxes reports layout for selectors before
// the input is dispatched.
type WireInput struct {
	Type    string              `json:"type"`
	X       float64             `json:"x,omitempty"`
	Y       float64             `json:"y,omitempty"`
	Button  int                 `json:"button,omitempty"`
	Key     string              `json:"key,omitempty"`
	Target  string              `json:"target,omitempty"`
	Command string              `json:"command,omitempty"`
	Boxes   map[string]dom.Rect `json:"boxes,omitempty"`
}

// Resolve applies reported boxes and turns w into an Input against doc. It
// must run on the goroutine that owns doc.
func (w WireInput) Resolve(doc *dom.Document) (Input, error) {
	for sel, r := range w.Boxes {
		nodes, err := doc.Query(sel)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			doc.SetBox(n, r)
		}
	}
	var path []*dom.Node
	if w.Target != "" {
		n, err := doc.QueryOne(w.Target)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, fmt.Errorf("no element matches %q", w.Target)
		}
		path = n.Path()
	}
	switch strings.ToLower(w.Type) {
	case KindPointerMove:
		return PointerMove{X: w.X, Y: w.Y, Path: path}, nil
	case KindClick:
		return MouseButton{Kind: ButtonClick, Button: w.Button, X: w.X, Y: w.Y, Path: path}, nil
	case KindMouseDown:
		return MouseButton{Kind: ButtonDown, Button: w.Button, X: w.X, Y: w.Y, Path: path}, nil
	case KindMouseUp:
		return MouseButton{Kind: ButtonUp, Button: w.Button, X: w.X, Y: w.Y, Path: path}, nil
	case KindContextMenu:
		return ContextMenu{X: w.X, Y: w.Y, Path: path}, nil
	case KindKeyDown:
		return KeyDown{Key: w.Key}, nil
	case KindScroll:
		return ScrollOrResize{}, nil
	case KindResize:
		return ScrollOrResize{Resize: true}, nil
	case "command":
		return Command{Type: w.Command}, nil
	}
	return nil, fmt.Errorf("unknown input type %q", w.Type)
}
