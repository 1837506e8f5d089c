// Package conversation manages the dialogue-level state of one call:
// the lifecycle state machine, turn-completion heuristics, barge-in and
// backchannel detection, and the bounded conversation history used to
// prompt the response generator.
//
// One state machine, turn manager, interruption handler, and context
// exist per call; nothing in this package is shared across calls.
package conversation
