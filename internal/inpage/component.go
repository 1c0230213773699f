// Package inpage is the component injected into a page context: it runs the
// element selection session, owns the exclusion store and answers host
// commands with fresh extraction results.
package inpage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/bridge"
	"github.com/hyperifyio/ptsnap/internal/dom"
	"github.com/hyperifyio/ptsnap/internal/exclusion"
	"github.com/hyperifyio/ptsnap/internal/extract"
	"github.com/hyperifyio/ptsnap/internal/protocol"
)

type attachKey struct{}

// Component is the per-document in-page state. It is not safe for
// concurrent use; drive it from one goroutine (see Loop).
type Component struct {
	doc      *dom.Document
	store    *exclusion.Store
	pipeline *extract.Pipeline
	out      *bridge.QuietEmitter
	sess     session
	global   map[string]listener
}

// Attach returns the component bound to doc, creating it on first call.
// created is false when a component was already attached; the emitter of a
// repeated call is ignored.
func Attach(doc *dom.Document, emitter bridge.Emitter) (c *Component, created bool) {
	v, loaded := doc.LoadOrStore(attachKey{}, func() any {
		return newComponent(doc, emitter)
	})
	return v.(*Component), !loaded
}

func newComponent(doc *dom.Document, emitter bridge.Emitter) *Component {
	store := exclusion.New()
	c := &Component{
		doc:      doc,
		store:    store,
		pipeline: &extract.Pipeline{Doc: doc, Store: store},
		out:      bridge.Quiet(emitter),
	}
	// restoring works outside selection mode as well
	c.global = map[string]listener{KindContextMenu: c.onContextMenu}
	return c
}

// Document returns the page the component is attached to.
func (c *Component) Document() *dom.Document { return c.doc }

// Store exposes the exclusion set.
func (c *Component) Store() *exclusion.Store { return c.store }

// Pipeline exposes the extraction pipeline.
func (c *Component) Pipeline() *extract.Pipeline { return c.pipeline }

// Active reports whether a selection session is running.
func (c *Component) Active() bool { return c.sess.active }

// Candidate returns the element currently under the selection overlay.
func (c *Component) Candidate() *dom.Node { return c.sess.candidate }

// Listening reports whether a listener of kind is registered.
func (c *Component) Listening(kind string) bool {
	_, ok := c.sess.listeners[kind]
	if !ok {
		_, ok = c.global[kind]
	}
	return ok
}

// Dispatch routes one input to the active session listener of its kind,
// falling back to the always-on listeners.
func (c *Component) Dispatch(in Input) Disposition {
	if cmd, ok := in.(Command); ok {
		_, _ = c.HandleCommand(context.Background(), protocol.Command{Type: cmd.Type})
		return Disposition{}
	}
	if l, ok := c.sess.listeners[in.kind()]; ok {
		return c.guard(in.kind(), l, in)
	}
	if l, ok := c.global[in.kind()]; ok {
		return c.guard(in.kind(), l, in)
	}
	return Disposition{}
}

func (c *Component) guard(kind string, l listener, in Input) (d Disposition) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("event", kind).Interface("panic", r).Msg("input handler failed")
			d = Disposition{}
		}
	}()
	return l(in)
}

// HandleCommand runs one host command. Unknown command types are ignored.
// A panicking handler is logged and reported in the response, never
// propagated.
func (c *Component) HandleCommand(_ context.Context, cmd protocol.Command) (resp protocol.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("command", cmd.Type).Interface("panic", r).Msg("command handler failed")
			resp = protocol.Response{Error: fmt.Sprintf("%s failed: %v", cmd.Type, r)}
			err = nil
		}
	}()
	switch cmd.Type {
	case protocol.CmdExtract:
		page := c.extractAndEmit()
		return protocol.Response{OK: true, Page: &page}, nil
	case protocol.CmdStartSelection:
		c.start()
		return protocol.Response{OK: true}, nil
	case protocol.CmdStopSelection:
		c.stop(protocol.ReasonComplete)
		return protocol.Response{OK: true}, nil
	case protocol.CmdReset:
		page := c.reset()
		return protocol.Response{OK: true, Page: &page}, nil
	}
	log.Debug().Str("command", cmd.Type).Msg("ignoring unknown command")
	return protocol.Response{}, nil
}

func (c *Component) emit(typ string, payload any) {
	c.out.Send(context.Background(), protocol.NewEvent(typ, payload))
}

func (c *Component) extractAndEmit() protocol.PageText {
	page := c.pipeline.Extract()
	c.emit(protocol.EvPageText, page)
	return page
}

func (c *Component) start() {
	if c.sess.active {
		return
	}
	body := c.doc.Body()
	if body == nil {
		log.Debug().Msg("no body; selection not started")
		return
	}
	ensureStyle(c.doc)
	c.sess.overlay = ensureOverlay(c.doc, body)
	c.sess.active = true
	c.sess.listen(KindPointerMove, c.onPointerMove)
	c.sess.listen(KindClick, c.onClick)
	c.sess.listen(KindMouseDown, c.onButton)
	c.sess.listen(KindMouseUp, c.onButton)
	c.sess.listen(KindContextMenu, c.onContextMenu)
	c.sess.listen(KindKeyDown, c.onKeyDown)
	c.sess.listen(KindScroll, c.onViewport)
	c.sess.listen(KindResize, c.onViewport)
	log.Debug().Msg("selection started")
	c.emit(protocol.EvSelectionStatus, protocol.SelectionStatus{Active: true})
}

func (c *Component) stop(reason string) {
	if !c.sess.active {
		return
	}
	c.sess.close()
	log.Debug().Str("reason", reason).Msg("selection stopped")
	c.emit(protocol.EvSelectionStatus, protocol.SelectionStatus{Active: false, Reason: reason})
}

func (c *Component) reset() protocol.PageText {
	c.stop(protocol.ReasonReset)
	if n := c.store.ResetAll(); n > 0 {
		log.Debug().Int("count", n).Msg("exclusions cleared")
		c.emit(protocol.EvElementRestored, protocol.ElementRestored{All: true})
	}
	return c.extractAndEmit()
}

func (c *Component) pathOf(path []*dom.Node, x, y float64) []*dom.Node {
	if len(path) > 0 {
		return path
	}
	return c.doc.HitTest(x, y)
}

func (c *Component) onPointerMove(in Input) Disposition {
	ev := in.(PointerMove)
	c.sess.candidate = c.sess.pick(c.pathOf(ev.Path, ev.X, ev.Y))
	c.sess.place(c.doc)
	return Disposition{}
}

func (c *Component) onViewport(Input) Disposition {
	c.sess.place(c.doc)
	return Disposition{}
}

func (c *Component) onButton(Input) Disposition { return suppress }

func (c *Component) onClick(in Input) Disposition {
	ev := in.(MouseButton)
	if ev.Button != 0 {
		return suppress
	}
	var target *dom.Node
	if len(ev.Path) > 0 && !(c.sess.overlay != nil && c.sess.overlay.Contains(ev.Path[0])) {
		target = c.sess.pick(ev.Path)
	}
	if target == nil {
		target = c.sess.candidate
	}
	c.commit(target)
	c.stop(protocol.ReasonComplete)
	return suppress
}

func (c *Component) commit(target *dom.Node) {
	if target == nil {
		return
	}
	desc, ok := c.store.Add(target)
	if !ok {
		return
	}
	log.Debug().Str("descriptor", desc).Int("count", c.store.Len()).Msg("element excluded")
	c.emit(protocol.EvElementExcluded, protocol.ElementExcluded{Descriptor: desc, ExcludedCount: c.store.Len()})
	c.extractAndEmit()
}

func (c *Component) onKeyDown(in Input) Disposition {
	if in.(KeyDown).Key != "Escape" {
		return Disposition{}
	}
	c.stop(protocol.ReasonCancelled)
	return suppress
}

// onContextMenu restores the nearest excluded element on the path. In
// selection mode the menu is always suppressed and the session ends.
func (c *Component) onContextMenu(in Input) Disposition {
	ev := in.(ContextMenu)
	active := c.sess.active
	var marked *dom.Node
	for _, n := range c.pathOf(ev.Path, ev.X, ev.Y) {
		if c.store.Contains(n) {
			marked = n
			break
		}
	}
	if marked == nil {
		if !active {
			return Disposition{}
		}
		c.stop(protocol.ReasonComplete)
		return suppress
	}
	desc, _ := c.store.Remove(marked)
	log.Debug().Str("descriptor", desc).Int("count", c.store.Len()).Msg("element restored")
	c.emit(protocol.EvElementRestored, protocol.ElementRestored{Descriptor: desc, ExcludedCount: c.store.Len()})
	c.stop(protocol.ReasonComplete)
	c.extractAndEmit()
	return Disposition{PreventDefault: true, StopPropagation: active}
}
