package conversation

import (
	"strings"
	"sync"
	"time"
)

// Turn manager defaults. The prosody split count is a coarse heuristic;
// treat it as a tunable parameter.
const (
	DefaultMinSpeechDuration     = 300 * time.Millisecond
	DefaultMaxPause              = 800 * time.Millisecond
	DefaultInterruptionThreshold = 100 * time.Millisecond

	prosodySentenceSplits = 2
)

// turnEndPhrases are utterances that usually hand the floor to the
// assistant: question starters and explicit prompts.
var turnEndPhrases = []string{
	"what do you think",
	"can you help",
	"do you know",
	"tell me",
	"explain",
	"how about",
	"what about",
	"right?",
	"okay?",
	"you know?",
}

// TurnManager decides when an accumulated utterance is a complete
// conversational turn. One instance exists per call. Safe for
// concurrent use.
type TurnManager struct {
	minSpeechDuration     time.Duration
	maxPause              time.Duration
	interruptionThreshold time.Duration

	mu            sync.Mutex
	speechStart   time.Time
	lastSpeechEnd time.Time
	userSpeaking  bool

	now func() time.Time
}

// NewTurnManager creates a TurnManager with the default thresholds.
func NewTurnManager() *TurnManager {
	return &TurnManager{
		minSpeechDuration:     DefaultMinSpeechDuration,
		maxPause:              DefaultMaxPause,
		interruptionThreshold: DefaultInterruptionThreshold,
		now:                   time.Now,
	}
}

// StartSpeech marks the start of caller speech.
func (t *TurnManager) StartSpeech() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.userSpeaking {
		t.speechStart = t.now()
		t.userSpeaking = true
	}
}

// EndSpeech marks the end of caller speech.
func (t *TurnManager) EndSpeech() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSpeechEnd = t.now()
	t.userSpeaking = false
}

// IsUserSpeaking reports whether the caller is currently speaking.
func (t *TurnManager) IsUserSpeaking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userSpeaking
}

// IsTurnComplete reports whether the caller has finished their turn.
// Too-short utterances never complete a turn; after that the checks
// are, in order: explicit turn-ending phrases, a question mark, the
// silence threshold, and a prosody heuristic (period-ending transcript
// or several sentence fragments).
func (t *TurnManager) IsTurnComplete(transcript string, silence time.Duration) bool {
	t.mu.Lock()
	speechStart := t.speechStart
	now := t.now()
	t.mu.Unlock()

	if !speechStart.IsZero() && now.Sub(speechStart) < t.minSpeechDuration {
		return false
	}

	if containsTurnEnd(transcript) {
		return true
	}
	if strings.Contains(transcript, "?") {
		return true
	}
	if silence > t.maxPause {
		return true
	}
	return checkProsody(transcript)
}

// IsInterruption reports whether current caller speech constitutes a
// barge-in: the caller and the assistant are both speaking, and the
// caller has been speaking longer than the interruption threshold
// (filtering out simultaneous-start false positives).
func (t *TurnManager) IsInterruption(assistantSpeaking bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !assistantSpeaking || !t.userSpeaking {
		return false
	}
	return t.now().Sub(t.speechStart) > t.interruptionThreshold
}

// Reset clears speech tracking for a new turn.
func (t *TurnManager) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speechStart = time.Time{}
	t.lastSpeechEnd = time.Time{}
	t.userSpeaking = false
}

func containsTurnEnd(transcript string) bool {
	lower := strings.ToLower(transcript)
	for _, phrase := range turnEndPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// checkProsody applies the punctuation-based completion heuristic.
func checkProsody(transcript string) bool {
	if strings.HasSuffix(strings.TrimSpace(transcript), ".") {
		return true
	}
	splits := strings.FieldsFunc(transcript, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	return len(splits) > prosodySentenceSplits
}
