// Package pipeline is the per-call orchestrator. It owns the bounded
// audio queues and drives three loops against them: ingest (decode,
// condition, voice-gate, accumulate, transcribe, turn-check), egress
// (pace one outbound chunk per tick to the wire), and a silence
// watchdog (force overdue responses and re-engage idle callers).
// Interruption handling may flush the outbound queue at any time.
//
// One Pipeline exists per call; nothing here is shared across calls.
package pipeline
