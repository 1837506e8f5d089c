package telephony

// Media-stream event types.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
)

// Message is the envelope for every inbound media-stream event. Only
// the payload matching Event is populated.
type Message struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSID      string        `json:"streamSid,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload announces a new media stream.
type StartPayload struct {
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	StreamSID        string            `json:"streamSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaFormat describes the wire audio encoding.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one frame of call audio.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	// Payload is base64-encoded mu-law audio.
	Payload string `json:"payload"`
}

// StopPayload announces the end of the media stream.
type StopPayload struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// MarkPayload names a marker event.
type MarkPayload struct {
	Name string `json:"name"`
}

// outboundMedia is a media event sent back to the provider.
type outboundMedia struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid"`
	Media     mediaEnvelope `json:"media"`
}

type mediaEnvelope struct {
	Payload string `json:"payload"`
}

// outboundMark is a mark event sent back to the provider.
type outboundMark struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid"`
	Mark      MarkPayload `json:"mark"`
}
