package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// ErrNoReceiver means nothing is listening in the target page context yet,
// typically because the in-page component has not been attached.
var ErrNoReceiver = errors.New("could not establish connection: receiving end does not exist")

// ChannelClosedError means the receiver got the command but the channel closed
// before it answered. Partial is whatever response was available.
type ChannelClosedError struct {
	Partial protocol.Response
	Cause   error
}

func (e *ChannelClosedError) Error() string {
	if e.Cause != nil {
		return "message channel closed before a response was received: " + e.Cause.Error()
	}
	return "message channel closed before a response was received"
}

func (e *ChannelClosedError) Unwrap() error { return e.Cause }

// Runtime messages surfaced by transports that only carry error text.
const (
	msgNoReceiver   = "Receiving end does not exist"
	msgClosedPrefix = "message port closed before a response was received"
	msgClosedAlt    = "message channel closed before a response was received"
)

// Classify maps transport errors onto ErrNoReceiver and *ChannelClosedError
// when their text identifies them. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrNoReceiver) {
		return err
	}
	var closed *ChannelClosedError
	if errors.As(err, &closed) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, strings.ToLower(msgNoReceiver)):
		return fmt.Errorf("%w (%v)", ErrNoReceiver, err)
	case strings.Contains(msg, msgClosedPrefix), strings.Contains(msg, msgClosedAlt):
		return &ChannelClosedError{Cause: err}
	}
	return err
}

// errorText renders err for the wire so that Classify recognizes it on the
// other side.
func errorText(err error) string {
	var closed *ChannelClosedError
	switch {
	case errors.Is(err, ErrNoReceiver):
		return "Could not establish connection. " + msgNoReceiver + "."
	case errors.As(err, &closed):
		return "The " + msgClosedPrefix + "."
	}
	return err.Error()
}
