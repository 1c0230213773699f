package inpage

import "github.com/hyperifyio/ptsnap/internal/dom"

// Input is one event delivered by the host runtime to the page.
type Input interface {
	kind() string
}

// Listener kinds registered while a selection session is active.
const (
	KindPointerMove = "pointermove"
	KindClick       = "click"
	KindMouseDown   = "mousedown"
	KindMouseUp     = "mouseup"
	KindContextMenu = "contextmenu"
	KindKeyDown     = "keydown"
	KindScroll      = "scroll"
	KindResize      = "resize"
)

var sessionKinds = []string{
	KindPointerMove, KindClick, KindMouseDown, KindMouseUp,
	KindContextMenu, KindKeyDown, KindScroll, KindResize,
}

// PointerMove reports the pointer position. Path is the hit-test path,
// innermost first; when empty the document is hit-tested at X, Y.
type PointerMove struct {
	X, Y float64
	Path []*dom.Node
}

// ButtonKind tells mouse button phases apart.
type ButtonKind int

const (
	ButtonDown ButtonKind = iota
	ButtonUp
	ButtonClick
)

// MouseButton is a mousedown, mouseup or click. Button 0 is the primary one.
type MouseButton struct {
	Kind   ButtonKind
	Button int
	X, Y   float64
	Path   []*dom.Node
}

// ContextMenu is a secondary-button click asking for the context menu.
type ContextMenu struct {
	X, Y float64
	Path []*dom.Node
}

// KeyDown carries the DOM key name, e.g. "Escape".
type KeyDown struct {
	Key string
}

// ScrollOrResize reports that the viewport moved or changed size.
type ScrollOrResize struct {
	Resize bool
}

// Command delivers a host command through the input path.
type Command struct {
	Type string
}

func (PointerMove) kind() string { return KindPointerMove }
func (ContextMenu) kind() string { return KindContextMenu }
func (KeyDown) kind() string     { return KindKeyDown }
func (Command) kind() string     { return "command" }

func (m MouseButton) kind() string {
	switch m.Kind {
	case ButtonDown:
		return KindMouseDown
	case ButtonUp:
		return KindMouseUp
	}
	return KindClick
}

func (s ScrollOrResize) kind() string {
	if s.Resize {
		return KindResize
	}
	return KindScroll
}

// Disposition tells the host runtime what to do with the native event.
type Disposition struct {
	PreventDefault  bool `json:"preventDefault"`
	StopPropagation bool `json:"stopPropagation"`
}

var suppress = Disposition{PreventDefault: true, StopPropagation: true}
