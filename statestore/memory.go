package statestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for single-process deployments and
// tests. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*CallState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*CallState),
	}
}

// Load retrieves call state by call SID.
func (s *MemoryStore) Load(_ context.Context, callSID string) (*CallState, error) {
	if callSID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[callSID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.clone(), nil
}

// Save persists call state.
func (s *MemoryStore) Save(_ context.Context, state *CallState) error {
	if state == nil {
		return ErrInvalidState
	}
	if state.CallSID == "" {
		return ErrInvalidID
	}

	stored := state.clone()
	stored.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.CallSID] = stored
	return nil
}

// Delete removes call state.
func (s *MemoryStore) Delete(_ context.Context, callSID string) error {
	if callSID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[callSID]; !ok {
		return ErrNotFound
	}
	delete(s.states, callSID)
	return nil
}

// Len returns the number of stored calls.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
