package tts

import (
	"context"
	"time"
)

const (
	// ChunkDuration is the duration of each delivered audio chunk.
	// It matches the telephony frame cadence so the egress loop can
	// forward chunks one per tick.
	ChunkDuration = 20 * time.Millisecond

	bytesPerSample = 2
)

// Service converts text to speech. Implementations abstract the TTS
// provider so the pipeline can swap them interchangeably.
type Service interface {
	// Name returns the provider identifier for logging.
	Name() string

	// SampleRate returns the PCM sample rate of delivered chunks in
	// Hz.
	SampleRate() int

	// Synthesize converts text to audio. Chunks arrive on the
	// returned channel in playback order; the channel closes after
	// the final chunk or after a chunk carrying an error. Cancelling
	// ctx abandons synthesis.
	Synthesize(ctx context.Context, text string, config SynthesisConfig) (<-chan AudioChunk, error)
}

// AudioChunk is one fixed-duration piece of synthesized audio.
type AudioChunk struct {
	// Data is raw little-endian signed 16-bit mono PCM.
	Data []byte

	// Index is the chunk sequence number, 0-based.
	Index int

	// Final marks the last chunk of the utterance.
	Final bool

	// Error is set if synthesis failed partway; no further chunks
	// follow.
	Error error
}

// SynthesisConfig configures one synthesis request.
type SynthesisConfig struct {
	// Voice is the provider-specific voice identifier.
	Voice string

	// Speed is the speech rate multiplier. Zero means 1.0.
	Speed float64

	// Model overrides the provider's default model.
	Model string
}

// DefaultSynthesisConfig returns the defaults for call audio.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		Speed: 1.0,
	}
}

// chunkSize returns the byte length of one chunk at the given rate.
func chunkSize(sampleRate int) int {
	samples := sampleRate * int(ChunkDuration.Milliseconds()) / 1000
	return samples * bytesPerSample
}

// deliverPCM splits pcm into fixed chunks and sends them on out,
// honoring ctx cancellation. It closes out when done.
func deliverPCM(ctx context.Context, out chan<- AudioChunk, pcm []byte, sampleRate int) {
	defer close(out)

	size := chunkSize(sampleRate)
	index := 0
	for offset := 0; offset < len(pcm); offset += size {
		end := offset + size
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := AudioChunk{
			Data:  pcm[offset:end],
			Index: index,
			Final: end == len(pcm),
		}
		select {
		case out <- chunk:
		case <-ctx.Done():
			return
		}
		index++
	}
}
