// Package protocol defines the messages exchanged between a host surface and
// the in-page component.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Command types sent by the host.
const (
	CmdExtract        = "EXTRACT"
	CmdStartSelection = "START_SELECTION"
	CmdStopSelection  = "STOP_SELECTION"
	CmdReset          = "RESET"
)

// Event types emitted by the in-page component.
const (
	EvPageText        = "PAGE_TEXT_RESULT"
	EvSelectionStatus = "PTS_SELECTION_STATUS"
	EvElementExcluded = "PTS_ELEMENT_EXCLUDED"
	EvElementRestored = "PTS_ELEMENT_RESTORED"
)

// Reasons a selection session ended.
const (
	ReasonComplete  = "complete"
	ReasonCancelled = "cancelled"
	ReasonReset     = "reset"
)

// Command is a host request.
type Command struct {
	Type string `json:"type"`
}

// PageText is the extraction result.
type PageText struct {
	Text          string   `json:"text"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	ExcludedCount int      `json:"excludedCount"`
	Excluded      []string `json:"excluded"`
}

// SelectionStatus reports a session transition.
type SelectionStatus struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`
}

// ElementExcluded reports a committed exclusion.
type ElementExcluded struct {
	Descriptor    string `json:"descriptor"`
	ExcludedCount int    `json:"excludedCount"`
}

// ElementRestored reports a single restore or, with All set, a bulk reset.
type ElementRestored struct {
	Descriptor    string `json:"descriptor"`
	ExcludedCount int    `json:"excludedCount"`
	All           bool   `json:"all,omitempty"`
}

// Response is the synchronous answer to a Command.
type Response struct {
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
	Page  *PageText `json:"page,omitempty"`
}

// Event is an outbound message. Payload holds one of the payload types above.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent encodes payload under typ.
func NewEvent(typ string, payload any) Event {
	b, err := json.Marshal(payload)
	if err != nil {
		// payload types are plain structs
		panic(fmt.Sprintf("protocol: encode %s: %v", typ, err))
	}
	return Event{Type: typ, Payload: b}
}

// Decode unmarshals the payload into the type matching ev.Type.
func (ev Event) Decode() (any, error) {
	var v any
	switch ev.Type {
	case EvPageText:
		v = &PageText{}
	case EvSelectionStatus:
		v = &SelectionStatus{}
	case EvElementExcluded:
		v = &ElementExcluded{}
	case EvElementRestored:
		v = &ElementRestored{}
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
	}
	return v, nil
}
