// Package telephony is the media-stream boundary: it speaks the
// Twilio-compatible JSON-over-WebSocket protocol, owns one session per
// call, and bridges inbound media events into the audio pipeline and
// pipeline output back onto the wire.
package telephony
