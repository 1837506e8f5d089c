// Package audio provides the signal-level building blocks for the call
// pipeline: voice activity detection (VAD), the G.711 mu-law wire codec,
// PCM16 helpers, and sample-rate conversion.
//
// The package operates on 16-bit linear PCM. Audio arrives from the
// telephony transport as 8-bit mu-law at 8kHz, is decoded and processed
// as PCM16, and is resampled to the transcription engine's native rate
// (16kHz) before recognition.
//
// # Usage Example
//
//	vad := audio.NewDetector(audio.DefaultDetectorParams())
//
//	pcm := audio.DecodeMulaw(payload)
//	pcm16k, _ := audio.Resample(pcm, 8000, 16000)
//	if vad.IsSpeech(pcm16k, 16000) {
//	    // caller is talking
//	}
package audio
