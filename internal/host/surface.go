// Package host keeps the state a host surface shows for one page context:
// the latest text snapshot, the selection mode flag and the excluded list.
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/bridge"
	"github.com/hyperifyio/ptsnap/internal/descriptor"
	"github.com/hyperifyio/ptsnap/internal/extract"
	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// State is a copy of the surface state.
type State struct {
	Page          *protocol.PageText
	Active        bool
	ExcludedCount int
	Excluded      []string
	Status        string
}

// Surface is safe for concurrent use. Commands may run while events are
// applied from another goroutine.
type Surface struct {
	ContextID string
	sender    *bridge.Sender

	mu    sync.Mutex
	state State
}

// New returns a surface for contextID that sends commands through sender.
func New(contextID string, sender *bridge.Sender) *Surface {
	return &Surface{ContextID: contextID, sender: sender, state: State{Excluded: []string{}}}
}

// Listener filters hub events down to this surface's context.
func (s *Surface) Listener() bridge.Listener {
	return func(contextID string, ev protocol.Event) {
		if contextID == s.ContextID {
			s.Apply(ev)
		}
	}
}

// Apply folds one event into the state. Replayed or late events leave the
// state as the latest snapshot describes it.
func (s *Surface) Apply(ev protocol.Event) {
	v, err := ev.Decode()
	if err != nil {
		log.Debug().Err(err).Str("ctx", s.ContextID).Msg("ignoring event")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch p := v.(type) {
	case *protocol.PageText:
		s.applyPage(*p)
	case *protocol.SelectionStatus:
		s.state.Active = p.Active
		s.state.Status = statusText(p)
	case *protocol.ElementExcluded:
		s.state.ExcludedCount = p.ExcludedCount
		s.state.Status = "Excluded " + descriptor.OrDefault(p.Descriptor)
	case *protocol.ElementRestored:
		s.state.ExcludedCount = p.ExcludedCount
		if p.All {
			s.state.Excluded = []string{}
			s.state.Status = "All exclusions cleared"
		} else {
			s.state.Status = "Restored " + descriptor.OrDefault(p.Descriptor)
		}
	}
}

func (s *Surface) applyPage(p protocol.PageText) {
	if p.Excluded == nil {
		p.Excluded = []string{}
	}
	s.state.Page = &p
	s.state.ExcludedCount = p.ExcludedCount
	s.state.Excluded = append([]string(nil), p.Excluded...)
}

func statusText(p *protocol.SelectionStatus) string {
	if p.Active {
		return "Selection mode: click an element to exclude it, Esc to cancel"
	}
	switch p.Reason {
	case protocol.ReasonCancelled:
		return "Selection cancelled"
	case protocol.ReasonReset:
		return "Selection reset"
	}
	return "Selection finished"
}

// Snapshot returns a copy of the current state.
func (s *Surface) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Excluded = append([]string(nil), s.state.Excluded...)
	if s.state.Page != nil {
		p := *s.state.Page
		out.Page = &p
	}
	return out
}

// Stats counts words and characters of the latest text.
func (s *Surface) Stats() extract.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Page == nil {
		return extract.Stats{}
	}
	return extract.Count(s.state.Page.Text)
}

func (s *Surface) send(ctx context.Context, typ string) (protocol.Response, error) {
	resp, err := s.sender.SendCommand(ctx, s.ContextID, protocol.Command{Type: typ})
	if err != nil {
		return resp, err
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("%s: %s", typ, resp.Error)
	}
	if resp.Page != nil {
		s.mu.Lock()
		s.applyPage(*resp.Page)
		s.mu.Unlock()
	}
	return resp, nil
}

// Extract requests a fresh snapshot.
func (s *Surface) Extract(ctx context.Context) (protocol.PageText, error) {
	if _, err := s.send(ctx, protocol.CmdExtract); err != nil {
		return protocol.PageText{}, err
	}
	snap := s.Snapshot()
	if snap.Page == nil {
		return protocol.PageText{}, nil
	}
	return *snap.Page, nil
}

// StartSelection enters selection mode. The flag is set before the command
// goes out and cleared again if it fails.
func (s *Surface) StartSelection(ctx context.Context) error {
	s.mu.Lock()
	s.state.Active = true
	s.mu.Unlock()
	if _, err := s.send(ctx, protocol.CmdStartSelection); err != nil {
		s.mu.Lock()
		s.state.Active = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// StopSelection leaves selection mode.
func (s *Surface) StopSelection(ctx context.Context) error {
	_, err := s.send(ctx, protocol.CmdStopSelection)
	return err
}

// Reset clears every exclusion and refreshes the text.
func (s *Surface) Reset(ctx context.Context) error {
	_, err := s.send(ctx, protocol.CmdReset)
	return err
}
