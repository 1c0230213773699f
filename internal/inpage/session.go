package inpage

import (
	"fmt"

	"github.com/hyperifyio/ptsnap/internal/dom"
	"github.com/hyperifyio/ptsnap/internal/exclusion"
)

const (
	styleID   = "pts-selection-style"
	overlayID = "pts-selection-overlay"
)

var selectionCSS = fmt.Sprintf(`#%[1]s {
  position: fixed;
  pointer-events: none;
  z-index: 2147483647;
  border: 2px solid #e5484d;
  background: rgba(229, 72, 77, 0.12);
  border-radius: 4px;
  transition: all 60ms ease-out;
}
.%[2]s {
  outline: 2px dashed #e5484d !important;
  outline-offset: 2px;
  opacity: 0.55;
}
`, overlayID, exclusion.MarkerClass)

type listener func(Input) Disposition

// session is the per-page selection mode state. The overlay and the
// listeners exist exactly while active is true.
type session struct {
	active    bool
	candidate *dom.Node
	overlay   *dom.Node
	listeners map[string]listener
	teardown  []func()
}

func (s *session) listen(kind string, fn listener) {
	if s.listeners == nil {
		s.listeners = make(map[string]listener)
	}
	s.listeners[kind] = fn
	s.teardown = append(s.teardown, func() { delete(s.listeners, kind) })
}

// close removes every listener and the overlay in one pass.
func (s *session) close() {
	for i := len(s.teardown) - 1; i >= 0; i-- {
		s.teardown[i]()
	}
	s.teardown = nil
	if s.overlay != nil {
		s.overlay.Remove()
	}
	s.overlay = nil
	s.candidate = nil
	s.active = false
}

// eligible reports whether n may become the selection candidate.
func (s *session) eligible(n *dom.Node) bool {
	if !n.IsElement() || n.IsDocumentElement() {
		return false
	}
	if s.overlay != nil && s.overlay.Contains(n) {
		return false
	}
	return true
}

// pick returns the topmost eligible element on a hit-test path.
func (s *session) pick(path []*dom.Node) *dom.Node {
	for _, n := range path {
		if s.eligible(n) {
			return n
		}
	}
	return nil
}

func ensureStyle(doc *dom.Document) {
	if doc.GetElementByID(styleID) != nil {
		return
	}
	parent := doc.Head()
	if parent == nil {
		parent = doc.DocumentElement()
	}
	if parent == nil {
		return
	}
	el := doc.CreateElement("style")
	el.SetAttribute("id", styleID)
	el.AppendText(selectionCSS)
	parent.AppendChild(el)
}

func ensureOverlay(doc *dom.Document, body *dom.Node) *dom.Node {
	if el := doc.GetElementByID(overlayID); el != nil {
		return el
	}
	el := doc.CreateElement("div")
	el.SetAttribute("id", overlayID)
	el.SetAttribute("aria-hidden", "true")
	el.SetStyleProperty("display", "none", "")
	body.AppendChild(el)
	return el
}

// place moves the overlay onto the candidate's box, hiding it when there is
// no candidate or its box is unknown.
func (s *session) place(doc *dom.Document) {
	if s.overlay == nil {
		return
	}
	box, ok := doc.Box(s.candidate)
	if s.candidate == nil || !ok || !s.candidate.Connected() {
		s.overlay.SetStyleProperty("display", "none", "")
		return
	}
	s.overlay.SetStyleProperty("top", px(box.Y), "")
	s.overlay.SetStyleProperty("left", px(box.X), "")
	s.overlay.SetStyleProperty("width", px(box.Width), "")
	s.overlay.SetStyleProperty("height", px(box.Height), "")
	s.overlay.SetStyleProperty("display", "block", "")
}

func px(v float64) string { return fmt.Sprintf("%gpx", v) }
