// Package asr converts caller audio to text. The pipeline hands it
// 16 kHz mono PCM accumulated between voice-activity boundaries; the
// provider returns the transcript used for turn management and response
// generation.
package asr
