package llm

import (
	"context"
)

// Generation defaults tuned for short spoken replies.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 150
)

// Service generates a text completion for a prompt. Implementations
// abstract the LLM provider so the pipeline can swap them
// interchangeably.
type Service interface {
	// Name returns the provider identifier for logging.
	Name() string

	// Generate produces a completion for the prompt under config.
	Generate(ctx context.Context, prompt string, config GenerationConfig) (string, error)
}

// GenerationConfig configures one completion request.
type GenerationConfig struct {
	// System is the system prompt establishing the assistant persona.
	System string

	// Temperature controls sampling randomness. Zero means the
	// default.
	Temperature float64

	// MaxTokens bounds the completion length. Zero means the default.
	// Spoken replies should stay short; long completions stall the
	// call while TTS catches up.
	MaxTokens int

	// Model overrides the provider's default model.
	Model string
}

// DefaultGenerationConfig returns defaults for voice replies.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}
