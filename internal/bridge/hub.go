package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// Handler answers commands inside one page context.
type Handler func(ctx context.Context, cmd protocol.Command) (protocol.Response, error)

// Listener observes events from every page context.
type Listener func(contextID string, ev protocol.Event)

type subscriber struct {
	id int
	fn Listener
}

// Hub routes commands to registered page contexts and fans their events out
// to host listeners in subscription order. It is safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	listeners []subscriber
	nextID    int
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{handlers: make(map[string]Handler)}
}

// Register installs the receiver for contextID, replacing any previous one.
// The returned function unregisters it.
func (h *Hub) Register(contextID string, fn Handler) func() {
	h.mu.Lock()
	h.handlers[contextID] = fn
	h.mu.Unlock()
	return func() { h.Unregister(contextID) }
}

// Unregister removes the receiver for contextID.
func (h *Hub) Unregister(contextID string) {
	h.mu.Lock()
	delete(h.handlers, contextID)
	h.mu.Unlock()
}

// Contexts lists the registered context ids in sorted order.
func (h *Hub) Contexts() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.handlers))
	for id := range h.handlers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Send implements Transport.
func (h *Hub) Send(ctx context.Context, target string, cmd protocol.Command) (protocol.Response, error) {
	h.mu.RLock()
	fn, ok := h.handlers[target]
	h.mu.RUnlock()
	if !ok {
		return protocol.Response{}, fmt.Errorf("context %s: %w", target, ErrNoReceiver)
	}
	return fn(ctx, cmd)
}

// Subscribe adds a host listener. The returned function removes it.
func (h *Hub) Subscribe(fn Listener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners = append(h.listeners, subscriber{id: id, fn: fn})
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.listeners {
			if s.id == id {
				h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev from contextID to every listener. It reports
// ErrNoReceiver when no host is listening.
func (h *Hub) Publish(contextID string, ev protocol.Event) error {
	h.mu.RLock()
	ls := make([]Listener, 0, len(h.listeners))
	for _, s := range h.listeners {
		ls = append(ls, s.fn)
	}
	h.mu.RUnlock()
	if len(ls) == 0 {
		return fmt.Errorf("event %s: %w", ev.Type, ErrNoReceiver)
	}
	for _, l := range ls {
		l(contextID, ev)
	}
	return nil
}

// Emitter returns the outbound path for the page context contextID.
func (h *Hub) Emitter(contextID string) Emitter {
	return EmitterFunc(func(_ context.Context, ev protocol.Event) error {
		return h.Publish(contextID, ev)
	})
}
