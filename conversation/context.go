package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultMaxTurns bounds how many turns are retained in memory for
// prompt construction. Older turns are evicted.
const DefaultMaxTurns = 10

// Turn is one caller/assistant exchange.
type Turn struct {
	Caller    string
	Assistant string
	Timestamp time.Time
	// Sequence is the 1-based position of the turn within the whole
	// call, counting evicted turns.
	Sequence int
}

// Context holds the bounded dialogue history and per-call metadata used
// to build prompts. Safe for concurrent use.
type Context struct {
	maxTurns int

	mu        sync.Mutex
	turns     []Turn
	metadata  map[string]any
	turnCount int
	startTime time.Time

	now func() time.Time
}

// NewContext creates a Context retaining at most maxTurns turns. Values
// below one fall back to DefaultMaxTurns.
func NewContext(maxTurns int) *Context {
	if maxTurns < 1 {
		maxTurns = DefaultMaxTurns
	}
	return &Context{
		maxTurns:  maxTurns,
		metadata:  make(map[string]any),
		startTime: time.Now(),
		now:       time.Now,
	}
}

// AddTurn appends a completed exchange, evicting the oldest retained
// turn once the cap is reached.
func (c *Context) AddTurn(caller, assistant string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turnCount++
	turn := Turn{
		Caller:    caller,
		Assistant: assistant,
		Timestamp: c.now(),
		Sequence:  c.turnCount,
	}
	if len(c.turns) == c.maxTurns {
		copy(c.turns, c.turns[1:])
		c.turns[c.maxTurns-1] = turn
	} else {
		c.turns = append(c.turns, turn)
	}
}

// Turns returns a copy of the retained turns, oldest first.
func (c *Context) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// HistoryText renders the most recent maxTurns retained turns as
// alternating "Caller:"/"Assistant:" lines for prompt construction.
// maxTurns below one means all retained turns.
func (c *Context) HistoryText(maxTurns int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := c.turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	var b strings.Builder
	for _, turn := range turns {
		if turn.Caller != "" {
			fmt.Fprintf(&b, "Caller: %s\n", turn.Caller)
		}
		if turn.Assistant != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", turn.Assistant)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// SetMetadata records a per-call key/value pair.
func (c *Context) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Metadata returns the value for key and whether it was set.
func (c *Context) Metadata(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metadata[key]
	return v, ok
}

// TurnCount returns the total number of turns added over the life of
// the call, including evicted ones.
func (c *Context) TurnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnCount
}

// ContextSummary is a point-in-time snapshot of the dialogue history.
type ContextSummary struct {
	TotalTurns    int
	RetainedTurns int
	Duration      time.Duration
}

// Summary returns a diagnostic snapshot of the context.
func (c *Context) Summary() ContextSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ContextSummary{
		TotalTurns:    c.turnCount,
		RetainedTurns: len(c.turns),
		Duration:      c.now().Sub(c.startTime),
	}
}

// Clear drops all retained turns and metadata, keeping the start time.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
	c.metadata = make(map[string]any)
	c.turnCount = 0
}
