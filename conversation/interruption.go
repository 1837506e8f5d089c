package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/AltairaLabs/CallBridge/logger"
)

// Interruption handler defaults.
const (
	// DefaultSustainedThreshold is how long caller speech must persist
	// during assistant speech before the assistant yields.
	DefaultSustainedThreshold = 500 * time.Millisecond

	// rapidYieldThreshold replaces the sustained threshold when the
	// caller has been interrupting frequently.
	rapidYieldThreshold = 200 * time.Millisecond

	// frequentWindow and frequentCount define "interrupting frequently":
	// more than frequentCount interruptions within frequentWindow.
	frequentWindow = 10 * time.Second
	frequentCount  = 3

	// maxBackchannelWords bounds how long an utterance can be and still
	// count as a backchannel.
	maxBackchannelWords = 3

	// recordCapacity bounds the interruption history ring, which exists
	// only for rate statistics.
	recordCapacity = 10
)

// backchannelPhrases are short acknowledgements that signal
// attentiveness, not a request to take the turn.
var backchannelPhrases = []string{
	"uh huh",
	"mm hmm",
	"yeah",
	"okay",
	"right",
	"sure",
	"yes",
	"no",
	"hmm",
}

// Record captures one detected interruption.
type Record struct {
	Timestamp  time.Time
	Transcript string
	// AssistantSpeechDuration is how long the assistant had been
	// speaking when the interruption occurred.
	AssistantSpeechDuration time.Duration
}

// InterruptionStats summarizes the interruption history.
type InterruptionStats struct {
	Total int
	// AverageSpeechDuration is the mean assistant-speech duration
	// before interruption.
	AverageSpeechDuration time.Duration
	// RecentRate is interruptions per second over the last minute.
	RecentRate float64
}

// Handler detects and classifies caller speech occurring while the
// assistant is talking. One instance exists per call. Safe for
// concurrent use.
type Handler struct {
	filterBackchannels bool

	mu                sync.Mutex
	assistantSpeaking bool
	speechStart       time.Time
	records           []Record
	callbacks         []func()

	now func() time.Time
}

// NewHandler creates a Handler. When filterBackchannels is true, short
// acknowledgements during assistant speech are not treated as
// interruptions.
func NewHandler(filterBackchannels bool) *Handler {
	return &Handler{
		filterBackchannels: filterBackchannels,
		now:                time.Now,
	}
}

// StartAssistantSpeech marks the assistant as speaking.
func (h *Handler) StartAssistantSpeech() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.assistantSpeaking {
		h.assistantSpeaking = true
		h.speechStart = h.now()
	}
}

// EndAssistantSpeech marks the assistant as quiet.
func (h *Handler) EndAssistantSpeech() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assistantSpeaking = false
}

// IsAssistantSpeaking reports whether the assistant is currently
// speaking.
func (h *Handler) IsAssistantSpeaking() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.assistantSpeaking
}

// DetectInterruption classifies caller speech during assistant speech.
// Backchannels are filtered when enabled; real interruptions are
// recorded and registered callbacks fire asynchronously (errors logged,
// never propagated).
func (h *Handler) DetectInterruption(transcript string, callerSpeaking bool) bool {
	h.mu.Lock()

	if !h.assistantSpeaking || !callerSpeaking {
		h.mu.Unlock()
		return false
	}

	if h.filterBackchannels && isBackchannel(transcript) {
		h.mu.Unlock()
		logger.Debug("backchannel detected", "transcript", transcript)
		return false
	}

	record := Record{
		Timestamp:               h.now(),
		Transcript:              transcript,
		AssistantSpeechDuration: h.now().Sub(h.speechStart),
	}
	if len(h.records) == recordCapacity {
		copy(h.records, h.records[1:])
		h.records[recordCapacity-1] = record
	} else {
		h.records = append(h.records, record)
	}
	callbacks := make([]func(), len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.Unlock()

	logger.Info("interruption detected", "transcript", transcript)

	for _, callback := range callbacks {
		go runCallback(callback)
	}
	return true
}

func runCallback(callback func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("interruption callback panicked", "panic", r)
		}
	}()
	callback()
}

// OnInterruption registers a callback fired (fire-and-forget) on each
// detected interruption.
func (h *Handler) OnInterruption(callback func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, callback)
}

// ShouldStopSpeaking reports whether the assistant should yield the
// floor, given how long the current interruption has lasted. The
// threshold tightens when the caller has been interrupting frequently.
func (h *Handler) ShouldStopSpeaking(interruptionDuration time.Duration) bool {
	if interruptionDuration > DefaultSustainedThreshold {
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-frequentWindow)
	recent := 0
	for _, r := range h.records {
		if r.Timestamp.After(cutoff) {
			recent++
		}
	}
	if recent > frequentCount {
		return interruptionDuration > rapidYieldThreshold
	}
	return false
}

// Stats returns statistics over the interruption history ring.
func (h *Handler) Stats() InterruptionStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := InterruptionStats{Total: len(h.records)}
	if len(h.records) == 0 {
		return stats
	}

	var total time.Duration
	for _, r := range h.records {
		total += r.AssistantSpeechDuration
	}
	stats.AverageSpeechDuration = total / time.Duration(len(h.records))

	cutoff := h.now().Add(-time.Minute)
	recent := 0
	for _, r := range h.records {
		if r.Timestamp.After(cutoff) {
			recent++
		}
	}
	stats.RecentRate = float64(recent) / 60.0
	return stats
}

// Reset clears tracking state between calls.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assistantSpeaking = false
	h.speechStart = time.Time{}
	h.records = nil
}

// isBackchannel reports whether text is a short acknowledgement rather
// than a turn-taking attempt: at most three words and an exact match
// against the known phrases, with or without a trailing period.
func isBackchannel(text string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	if trimmed == "" {
		return false
	}
	if len(strings.Fields(trimmed)) > maxBackchannelWords {
		return false
	}
	for _, phrase := range backchannelPhrases {
		if trimmed == phrase || trimmed == phrase+"." {
			return true
		}
	}
	return false
}
