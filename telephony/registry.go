package telephony

import (
	"errors"
	"sync"
)

var (
	// ErrCapacityReached means the registry is at its concurrent call
	// limit.
	ErrCapacityReached = errors.New("telephony: concurrent call capacity reached")

	// ErrDuplicateCall means a session already exists for the call SID.
	ErrDuplicateCall = errors.New("telephony: session already exists for call")

	// ErrMissingCallSID means a start event arrived without a call SID.
	ErrMissingCallSID = errors.New("telephony: start event missing call SID")
)

// Registry tracks live sessions keyed by call SID and enforces the
// concurrent call cap. Sessions are created explicitly on stream start
// and removed on stream stop or connection loss.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
}

// NewRegistry creates a Registry admitting at most max concurrent
// sessions. A max below one means unbounded.
func NewRegistry(max int) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		max:      max,
	}
}

// Add registers a session, rejecting duplicates and overflow.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.CallSID]; exists {
		return ErrDuplicateCall
	}
	if r.max > 0 && len(r.sessions) >= r.max {
		return ErrCapacityReached
	}
	r.sessions[s.CallSID] = s
	return nil
}

// Remove drops the session for callSID if present.
func (r *Registry) Remove(callSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callSID)
}

// Get returns the session for callSID.
func (r *Registry) Get(callSID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callSID]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every live session. Used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
