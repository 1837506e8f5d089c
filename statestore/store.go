// Package statestore persists per-call conversation state so transcripts
// survive process restarts and can be inspected after the call ends.
package statestore

import (
	"context"
	"errors"
	"time"
)

// Store persists call state.
type Store interface {
	// Load retrieves call state by call SID. Returns ErrNotFound if
	// the call is unknown.
	Load(ctx context.Context, callSID string) (*CallState, error)

	// Save persists call state, replacing any existing state for the
	// same call SID.
	Save(ctx context.Context, state *CallState) error

	// Delete removes call state. Returns ErrNotFound if the call is
	// unknown.
	Delete(ctx context.Context, callSID string) error
}

// Errors returned by stores.
var (
	// ErrNotFound is returned when a call doesn't exist in the store.
	ErrNotFound = errors.New("call not found")

	// ErrInvalidID is returned when an invalid call SID is provided.
	ErrInvalidID = errors.New("invalid call SID")

	// ErrInvalidState is returned when a call state is invalid.
	ErrInvalidState = errors.New("invalid call state")
)

// TurnRecord is one persisted caller/assistant exchange.
type TurnRecord struct {
	Caller    string    `json:"caller"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  int       `json:"sequence"`
}

// CallState is the persisted snapshot of one call.
type CallState struct {
	// CallSID is the telephony provider's call identifier.
	CallSID string `json:"call_sid"`

	// StreamSID is the media stream identifier, set once the stream
	// starts.
	StreamSID string `json:"stream_sid,omitempty"`

	// CallerNumber is the caller's phone number when known.
	CallerNumber string `json:"caller_number,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`

	// Turns is the retained dialogue history at save time.
	Turns []TurnRecord `json:"turns,omitempty"`

	// TurnCount is the total number of turns over the call, counting
	// turns evicted from the retained history.
	TurnCount int `json:"turn_count"`

	// Interruptions is the number of detected barge-ins.
	Interruptions int `json:"interruptions"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// UpdatedAt is set by Save.
	UpdatedAt time.Time `json:"updated_at"`
}

// clone returns a deep copy so callers cannot mutate stored state.
func (s *CallState) clone() *CallState {
	out := *s
	if s.Turns != nil {
		out.Turns = make([]TurnRecord, len(s.Turns))
		copy(out.Turns, s.Turns)
	}
	if s.Metadata != nil {
		out.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
