package asr

import (
	"context"
)

const (
	// Default audio settings for telephony-sourced speech. The
	// pipeline upsamples the 8 kHz wire audio before transcription.
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultBitDepth   = 16

	FormatPCM = "pcm"
	FormatWAV = "wav"
)

// Service transcribes caller audio to text. Implementations abstract
// the ASR provider so the pipeline can swap them interchangeably.
type Service interface {
	// Name returns the provider identifier for logging.
	Name() string

	// Transcribe converts audio to text. The audio encoding is
	// described by config.
	Transcribe(ctx context.Context, audio []byte, config TranscriptionConfig) (string, error)
}

// TranscriptionConfig describes the audio handed to Transcribe.
type TranscriptionConfig struct {
	// Format is "pcm" or "wav". Default: "pcm".
	Format string

	// SampleRate in Hz. Default: 16000.
	SampleRate int

	// Channels, 1 for telephony audio. Default: 1.
	Channels int

	// BitDepth in bits per sample for PCM. Default: 16.
	BitDepth int

	// Language is an optional hint (e.g. "en").
	Language string

	// Model overrides the provider's default model.
	Model string

	// Prompt guides transcription toward domain vocabulary.
	Prompt string
}

// DefaultTranscriptionConfig returns the defaults for pipeline audio.
func DefaultTranscriptionConfig() TranscriptionConfig {
	return TranscriptionConfig{
		Format:     FormatPCM,
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
		Language:   "en",
	}
}
