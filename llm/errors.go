package llm

import (
	"errors"
	"fmt"
)

// Common errors for LLM services.
var (
	// ErrEmptyPrompt is returned when the prompt is empty.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrRateLimited is returned when the provider rate limits requests.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrEmptyCompletion is returned when the provider returns no text.
	ErrEmptyCompletion = errors.New("provider returned empty completion")
)

// GenerationError represents an error during response generation.
type GenerationError struct {
	Provider  string
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(provider, code, message string, cause error, retryable bool) *GenerationError {
	return &GenerationError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
	}
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s generation error [%s]: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s generation error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *GenerationError) Is(target error) bool {
	if e.Cause != nil && errors.Is(e.Cause, target) {
		return true
	}
	t, ok := target.(*GenerationError)
	if !ok {
		return false
	}
	return e.Provider == t.Provider && e.Code == t.Code
}
