package inpage

import (
	"context"
	"fmt"

	"github.com/hyperifyio/ptsnap/internal/bridge"
	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// Loop serializes every access to a Component onto one goroutine, the way a
// page's event loop does.
type Loop struct {
	comp *Component
	work chan func()
	done chan struct{}
}

// NewLoop wraps c. Call Run to start processing.
func NewLoop(c *Component) *Loop {
	return &Loop{comp: c, work: make(chan func()), done: make(chan struct{})}
}

// Run processes work until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.work:
			fn()
		}
	}
}

// Do runs fn on the loop goroutine and waits for it. It fails with
// bridge.ErrNoReceiver once the loop has stopped.
func (l *Loop) Do(ctx context.Context, fn func(c *Component)) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn(l.comp)
	}
	select {
	case l.work <- task:
	case <-l.done:
		return fmt.Errorf("page loop stopped: %w", bridge.ErrNoReceiver)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Command is a bridge.Handler running cmd on the loop.
func (l *Loop) Command(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	var (
		resp protocol.Response
		herr error
	)
	if err := l.Do(ctx, func(c *Component) { resp, herr = c.HandleCommand(ctx, cmd) }); err != nil {
		return protocol.Response{}, err
	}
	return resp, herr
}

// Input dispatches in on the loop.
func (l *Loop) Input(ctx context.Context, in Input) (Disposition, error) {
	var d Disposition
	err := l.Do(ctx, func(c *Component) { d = c.Dispatch(in) })
	return d, err
}
