package bridge

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// Emitter carries events out of a page context.
type Emitter interface {
	Emit(ctx context.Context, ev protocol.Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev protocol.Event) error

func (f EmitterFunc) Emit(ctx context.Context, ev protocol.Event) error { return f(ctx, ev) }

// QuietEmitter sends events fire-and-forget.
type QuietEmitter struct {
	inner Emitter
}

// Quiet wraps e so delivery failures are logged at debug level and dropped.
// A nil e discards everything.
func Quiet(e Emitter) *QuietEmitter { return &QuietEmitter{inner: e} }

// Send emits ev and never fails.
func (q *QuietEmitter) Send(ctx context.Context, ev protocol.Event) {
	if q == nil || q.inner == nil {
		return
	}
	if err := q.inner.Emit(ctx, ev); err != nil {
		log.Debug().Err(err).Str("event", ev.Type).Msg("event not delivered")
	}
}
