package tts

import (
	"context"
	"strings"
)

// silenceSampleRate matches the pipeline's processing rate so silence
// needs no resampling.
const silenceSampleRate = 16000

// msPerWord approximates speaking pace for sizing the silent output.
const msPerWord = 300

// SilenceService is a degraded-mode provider producing silent audio
// sized to the text. It keeps call pacing intact when the real provider
// is down and serves as a test double.
type SilenceService struct{}

// NewSilence creates a SilenceService.
func NewSilence() *SilenceService {
	return &SilenceService{}
}

// Name returns the provider identifier.
func (s *SilenceService) Name() string {
	return "silence"
}

// SampleRate returns the PCM rate of delivered chunks.
func (s *SilenceService) SampleRate() int {
	return silenceSampleRate
}

// Synthesize produces silence lasting roughly as long as text would
// take to speak.
func (s *SilenceService) Synthesize(
	ctx context.Context, text string, _ SynthesisConfig,
) (<-chan AudioChunk, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	samples := silenceSampleRate * words * msPerWord / 1000
	pcm := make([]byte, samples*bytesPerSample)

	out := make(chan AudioChunk, 8)
	go deliverPCM(ctx, out, pcm, silenceSampleRate)
	return out, nil
}
