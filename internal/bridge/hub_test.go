package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/ptsnap/internal/protocol"
)

func TestHubRoutesCommands(t *testing.T) {
	h := NewHub()
	_, err := h.Send(context.Background(), "a", extractCmd)
	assert.ErrorIs(t, err, ErrNoReceiver)

	unregister := h.Register("a", func(_ context.Context, cmd protocol.Command) (protocol.Response, error) {
		return protocol.Response{OK: cmd.Type == protocol.CmdExtract}, nil
	})
	h.Register("b", func(context.Context, protocol.Command) (protocol.Response, error) { return protocol.Response{}, nil })
	assert.Equal(t, []string{"a", "b"}, h.Contexts())

	resp, err := h.Send(context.Background(), "a", extractCmd)
	require.NoError(t, err)
	assert.True(t, resp.OK)

	unregister()
	_, err = h.Send(context.Background(), "a", extractCmd)
	assert.ErrorIs(t, err, ErrNoReceiver)
}

func TestHubPublish(t *testing.T) {
	h := NewHub()
	ev := protocol.NewEvent(protocol.EvSelectionStatus, protocol.SelectionStatus{Active: true})
	assert.ErrorIs(t, h.Emitter("a").Emit(context.Background(), ev), ErrNoReceiver)

	var got []string
	cancel := h.Subscribe(func(id string, ev protocol.Event) { got = append(got, id+":"+ev.Type) })
	require.NoError(t, h.Emitter("a").Emit(context.Background(), ev))
	assert.Equal(t, []string{"a:PTS_SELECTION_STATUS"}, got)

	cancel()
	assert.ErrorIs(t, h.Publish("a", ev), ErrNoReceiver)
}

func TestSenderOverHubRetriesUntilRegistered(t *testing.T) {
	h := NewHub()
	s := NewSender(h)
	s.sleep = func(context.Context, time.Duration) error {
		h.Register("late", func(context.Context, protocol.Command) (protocol.Response, error) {
			return protocol.Response{OK: true}, nil
		})
		return nil
	}
	resp, err := s.SendCommand(context.Background(), "late", extractCmd)
	require.NoError(t, err)
	assert.True(t, resp.OK)
}
