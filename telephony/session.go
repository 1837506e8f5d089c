package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AltairaLabs/CallBridge/pipeline"
)

// DefaultWriteWait is the timeout for outbound websocket writes.
const DefaultWriteWait = 10 * time.Second

// Session binds one websocket connection to one call. It implements
// pipeline.Transport for the outbound direction.
type Session struct {
	// ID is the gateway-assigned session identifier.
	ID string

	// CallSID and StreamSID identify the call on the provider side.
	CallSID   string
	StreamSID string

	conn      *websocket.Conn
	writeMu   sync.Mutex // serializes writes (gorilla/websocket requirement)
	writeWait time.Duration

	pipeline *pipeline.Pipeline
	cancel   context.CancelFunc
	done     chan struct{}

	closeOnce sync.Once
}

// SendAudio transmits one mu-law payload as a media event on the
// session's stream.
func (s *Session) SendAudio(payload []byte) error {
	msg := outboundMedia{
		Event:     EventMedia,
		StreamSID: s.StreamSID,
		Media:     mediaEnvelope{Payload: base64.StdEncoding.EncodeToString(payload)},
	}
	return s.writeJSON(msg)
}

// SendMark transmits a named mark event on the session's stream.
func (s *Session) SendMark(name string) error {
	msg := outboundMark{
		Event:     EventMark,
		StreamSID: s.StreamSID,
		Mark:      MarkPayload{Name: name},
	}
	return s.writeJSON(msg)
}

func (s *Session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound event: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close stops the session's pipeline and closes the underlying
// connection with a normal closure frame.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"))
		s.writeMu.Unlock()

		s.conn.Close()
	})
}

// Done is closed once the session's pipeline has fully stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
