// Package tts converts assistant replies to audio. Providers deliver
// PCM in fixed-duration chunks over a channel so the pipeline can pace
// playback to the telephone wire and abandon synthesis mid-utterance
// when the caller barges in.
package tts
