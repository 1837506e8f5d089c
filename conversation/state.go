package conversation

import (
	"sync"
	"time"

	"github.com/AltairaLabs/CallBridge/logger"
)

// State is a stage in the call lifecycle.
type State int

const (
	// StateInitializing is the state before the media stream starts.
	StateInitializing State = iota
	// StateListening indicates the caller has the floor.
	StateListening
	// StateProcessing indicates a response is being generated.
	StateProcessing
	// StateSpeaking indicates the assistant is playing audio.
	StateSpeaking
	// StateInterrupted indicates the caller barged in on the assistant.
	StateInterrupted
	// StateEnding indicates teardown has begun.
	StateEnding
	// StateEnded is terminal.
	StateEnded
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// transitions is the static table of allowed lifecycle edges. A
// transition request not present here is rejected without changing
// state.
var transitions = map[State][]State{
	StateInitializing: {StateListening},
	StateListening:    {StateProcessing, StateEnding},
	StateProcessing:   {StateSpeaking, StateListening},
	StateSpeaking:     {StateListening, StateInterrupted},
	StateInterrupted:  {StateListening},
	StateEnding:       {StateEnded},
	StateEnded:        {},
}

// Transition records one applied state change.
type Transition struct {
	From      State
	To        State
	Timestamp time.Time
	// Duration is the time spent in the From state.
	Duration time.Duration
}

// StateCallback is invoked after a state has been entered.
type StateCallback func(State)

// Machine enforces the legal lifecycle of one call. Exactly one Machine
// exists per call SID. Safe for concurrent use.
type Machine struct {
	callSID string

	mu        sync.Mutex
	state     State
	prev      State
	hasPrev   bool
	enteredAt time.Time
	history   []Transition
	callbacks map[State]StateCallback
}

// NewMachine creates a Machine in StateInitializing.
func NewMachine(callSID string) *Machine {
	return &Machine{
		callSID:   callSID,
		state:     StateInitializing,
		enteredAt: time.Now(),
		callbacks: make(map[State]StateCallback),
	}
}

// TransitionTo applies a transition if it is present in the static
// table. Invalid transitions are rejected and logged; state is
// unchanged and the caller must re-derive a valid transition. A
// registered callback for the entered state runs after the transition
// is fully applied, so a panicking callback cannot corrupt it.
func (m *Machine) TransitionTo(to State) bool {
	m.mu.Lock()

	if !allowed(m.state, to) {
		from := m.state
		m.mu.Unlock()
		logger.Warn("invalid state transition rejected",
			"call_sid", m.callSID, "from", from.String(), "to", to.String())
		return false
	}

	now := time.Now()
	m.history = append(m.history, Transition{
		From:      m.state,
		To:        to,
		Timestamp: now,
		Duration:  now.Sub(m.enteredAt),
	})
	m.prev = m.state
	m.hasPrev = true
	m.state = to
	m.enteredAt = now
	callback := m.callbacks[to]
	m.mu.Unlock()

	logger.Info("state transition",
		"call_sid", m.callSID, "from", m.prev.String(), "to", to.String())

	if callback != nil {
		invokeCallback(m.callSID, to, callback)
	}
	return true
}

func invokeCallback(callSID string, state State, callback StateCallback) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("state callback panicked",
				"call_sid", callSID, "state", state.String(), "panic", r)
		}
	}()
	callback(state)
}

func allowed(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RegisterCallback registers a callback invoked on entry to the given
// state, replacing any previous one.
func (m *Machine) RegisterCallback(state State, callback StateCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[state] = callback
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InState reports whether the machine is currently in the given state.
func (m *Machine) InState(state State) bool {
	return m.State() == state
}

// CanTransitionTo reports whether the given transition would be allowed
// from the current state.
func (m *Machine) CanTransitionTo(to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return allowed(m.state, to)
}

// StateDuration returns the elapsed time since the current state was
// entered.
func (m *Machine) StateDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.enteredAt)
}

// History returns a copy of the applied transitions, oldest first.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// MachineSummary is a point-in-time diagnostic snapshot.
type MachineSummary struct {
	CallSID       string
	Current       State
	Previous      State
	HasPrevious   bool
	StateDuration time.Duration
	Transitions   int
}

// Summary returns a diagnostic snapshot of the machine.
func (m *Machine) Summary() MachineSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MachineSummary{
		CallSID:       m.callSID,
		Current:       m.state,
		Previous:      m.prev,
		HasPrevious:   m.hasPrev,
		StateDuration: time.Since(m.enteredAt),
		Transitions:   len(m.history),
	}
}
