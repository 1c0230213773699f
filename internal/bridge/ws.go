package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// Envelope kinds on the WebSocket.
const (
	KindCommand  = "command"
	KindResponse = "response"
	KindEvent    = "event"
)

// Envelope is one WebSocket frame. Responses carry the id of their command.
type Envelope struct {
	Kind     string             `json:"kind"`
	ID       string             `json:"id,omitempty"`
	Command  *protocol.Command  `json:"command,omitempty"`
	Response *protocol.Response `json:"response,omitempty"`
	Event    *protocol.Event    `json:"event,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type result struct {
	resp protocol.Response
	err  error
}

// WSClient is a host-side connection to one page context.
type WSClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	onEvent func(protocol.Event)

	mu      sync.Mutex
	pending map[string]chan result
	closed  bool
	done    chan struct{}
}

// DialContext connects to a page context WebSocket endpoint. A failed dial
// is reported as ErrNoReceiver. onEvent, when set, receives every event on
// the reader goroutine.
func DialContext(ctx context.Context, url string, onEvent func(protocol.Event)) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %v: %w", url, err, ErrNoReceiver)
	}
	c := &WSClient{
		conn:    conn,
		onEvent: onEvent,
		pending: make(map[string]chan result),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) readLoop() {
	var cause error
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			cause = err
			break
		}
		switch env.Kind {
		case KindResponse:
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			delete(c.pending, env.ID)
			c.mu.Unlock()
			if !ok {
				continue
			}
			var r result
			if env.Response != nil {
				r.resp = *env.Response
			}
			if env.Error != "" {
				r.err = Classify(errors.New(env.Error))
				var closed *ChannelClosedError
				if errors.As(r.err, &closed) {
					closed.Partial = r.resp
				}
			}
			ch <- r
		case KindEvent:
			if env.Event != nil && c.onEvent != nil {
				c.onEvent(*env.Event)
			}
		}
	}
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]chan result)
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- result{err: &ChannelClosedError{Cause: cause}}
	}
	close(c.done)
}

// Request sends cmd and waits for its response.
func (c *WSClient) Request(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	id := uuid.NewString()
	ch := make(chan result, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return protocol.Response{}, fmt.Errorf("connection closed: %w", ErrNoReceiver)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(Envelope{Kind: KindCommand, ID: id, Command: &cmd})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return protocol.Response{}, fmt.Errorf("write command: %v: %w", err, ErrNoReceiver)
	}

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return protocol.Response{}, ctx.Err()
	}
}

// Done is closed once the connection is gone.
func (c *WSClient) Done() <-chan struct{} { return c.done }

// Close shuts the connection down.
func (c *WSClient) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// WSTransport implements Transport by dialing BaseURL/contexts/{id}/ws per
// target and reusing live connections.
type WSTransport struct {
	BaseURL string
	// OnEvent receives events from every dialed context.
	OnEvent Listener

	mu      sync.Mutex
	clients map[string]*WSClient
}

// Send implements Transport.
func (t *WSTransport) Send(ctx context.Context, target string, cmd protocol.Command) (protocol.Response, error) {
	c, err := t.client(ctx, target)
	if err != nil {
		return protocol.Response{}, err
	}
	resp, err := c.Request(ctx, cmd)
	if err != nil && errors.Is(err, ErrNoReceiver) {
		t.forget(target, c)
	}
	return resp, err
}

func (t *WSTransport) client(ctx context.Context, target string) (*WSClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[target]; ok {
		select {
		case <-c.Done():
			delete(t.clients, target)
		default:
			return c, nil
		}
	}
	url := strings.TrimRight(wsURL(t.BaseURL), "/") + "/contexts/" + target + "/ws"
	var onEvent func(protocol.Event)
	if t.OnEvent != nil {
		onEvent = func(ev protocol.Event) { t.OnEvent(target, ev) }
	}
	c, err := DialContext(ctx, url, onEvent)
	if err != nil {
		return nil, err
	}
	if t.clients == nil {
		t.clients = make(map[string]*WSClient)
	}
	t.clients[target] = c
	return c, nil
}

func (t *WSTransport) forget(target string, c *WSClient) {
	t.mu.Lock()
	if t.clients[target] == c {
		delete(t.clients, target)
	}
	t.mu.Unlock()
}

// Close closes every open connection.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var first error
	for id, c := range t.clients {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(t.clients, id)
	}
	return first
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	}
	return base
}

// ServeConn runs the page side of a WebSocket: commands are answered by
// handler one at a time and events published by the hub for contextID are
// forwarded. It returns when the connection or ctx ends.
func ServeConn(ctx context.Context, conn *websocket.Conn, contextID string, handler Handler, hub *Hub) error {
	var writeMu sync.Mutex
	write := func(env Envelope) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(env)
	}

	unsubscribe := hub.Subscribe(func(id string, ev protocol.Event) {
		if id != contextID {
			return
		}
		if err := write(Envelope{Kind: KindEvent, Event: &ev}); err != nil {
			log.Debug().Err(err).Str("ctx", contextID).Msg("ws event write failed")
		}
	})
	defer unsubscribe()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ws read: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Kind != KindCommand || env.Command == nil {
			log.Debug().Str("ctx", contextID).Msg("ignoring malformed ws frame")
			continue
		}
		resp, herr := handler(ctx, *env.Command)
		out := Envelope{Kind: KindResponse, ID: env.ID, Response: &resp}
		if herr != nil {
			out.Error = errorText(herr)
		}
		if err := write(out); err != nil {
			return fmt.Errorf("ws write: %w", err)
		}
	}
}
