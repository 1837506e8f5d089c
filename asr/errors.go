package asr

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all transcription services.
var (
	// ErrEmptyAudio rejects a transcription request with no audio.
	ErrEmptyAudio = errors.New("audio data is empty")

	// ErrRateLimited marks a provider 429.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrAudioTooShort marks audio below the provider's minimum length.
	ErrAudioTooShort = errors.New("audio too short to transcribe")
)

// TranscriptionError carries provider context for a failed request so
// the pipeline can log it and decide whether a retry is worthwhile.
type TranscriptionError struct {
	Provider  string
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// NewTranscriptionError builds a TranscriptionError.
func NewTranscriptionError(provider, code, message string, cause error, retryable bool) *TranscriptionError {
	return &TranscriptionError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
	}
}

func (e *TranscriptionError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s transcription error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s transcription error [%s]: %s", e.Provider, e.Code, e.Message)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Cause
}

// Is matches either the wrapped cause or another TranscriptionError
// from the same provider with the same code.
func (e *TranscriptionError) Is(target error) bool {
	if e.Cause != nil && errors.Is(e.Cause, target) {
		return true
	}
	if t, ok := target.(*TranscriptionError); ok {
		return e.Provider == t.Provider && e.Code == t.Code
	}
	return false
}
