// Package bridge carries commands from a host surface to the in-page
// component and events back, over an in-process hub or a WebSocket.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// DefaultRetryDelay is the pause before the single retry after ErrNoReceiver.
const DefaultRetryDelay = 75 * time.Millisecond

// Transport delivers one command to the page context named by target.
type Transport interface {
	Send(ctx context.Context, target string, cmd protocol.Command) (protocol.Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, target string, cmd protocol.Command) (protocol.Response, error)

func (f TransportFunc) Send(ctx context.Context, target string, cmd protocol.Command) (protocol.Response, error) {
	return f(ctx, target, cmd)
}

// Sender is the host-side command path.
type Sender struct {
	Transport  Transport
	RetryDelay time.Duration

	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSender returns a Sender with the default retry delay.
func NewSender(t Transport) *Sender {
	return &Sender{Transport: t, RetryDelay: DefaultRetryDelay}
}

// SendCommand delivers cmd to target. When nothing is listening yet it waits
// RetryDelay and tries exactly once more. A channel that closed before
// answering resolves with its partial response. Other errors are returned.
func (s *Sender) SendCommand(ctx context.Context, target string, cmd protocol.Command) (protocol.Response, error) {
	return s.send(ctx, target, cmd, 0)
}

func (s *Sender) send(ctx context.Context, target string, cmd protocol.Command, attempt int) (protocol.Response, error) {
	resp, err := s.Transport.Send(ctx, target, cmd)
	if err == nil {
		return resp, nil
	}
	err = Classify(err)

	var closed *ChannelClosedError
	if errors.As(err, &closed) {
		log.Debug().Str("ctx", target).Str("command", cmd.Type).Err(err).Msg("channel closed; using partial response")
		return closed.Partial, nil
	}
	if errors.Is(err, ErrNoReceiver) && attempt == 0 {
		log.Debug().Str("ctx", target).Str("command", cmd.Type).Msg("no receiver; retrying once")
		if serr := s.pause(ctx); serr != nil {
			return protocol.Response{}, fmt.Errorf("send %s: %w", cmd.Type, serr)
		}
		return s.send(ctx, target, cmd, attempt+1)
	}
	return protocol.Response{}, fmt.Errorf("send %s to %s: %w", cmd.Type, target, err)
}

func (s *Sender) pause(ctx context.Context) error {
	d := s.RetryDelay
	if d <= 0 {
		d = DefaultRetryDelay
	}
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
