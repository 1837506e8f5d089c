package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AltairaLabs/CallBridge/asr"
	"github.com/AltairaLabs/CallBridge/audio"
	"github.com/AltairaLabs/CallBridge/llm"
	"github.com/AltairaLabs/CallBridge/statestore"
	"github.com/AltairaLabs/CallBridge/tts"
)

type stubASR struct {
	mu    sync.Mutex
	calls int
}

func (s *stubASR) Name() string { return "stub-asr" }

func (s *stubASR) Transcribe(context.Context, []byte, asr.TranscriptionConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "What is your name?", nil
}

type stubLLM struct{}

func (stubLLM) Name() string { return "stub-llm" }

func (stubLLM) Generate(context.Context, string, llm.GenerationConfig) (string, error) {
	return "I am the assistant.", nil
}

func testGateway(cfg GatewayConfig) *Gateway {
	return NewGateway(cfg, Deps{
		ASR:       &stubASR{},
		Generator: llm.NewResponseGenerator(stubLLM{}, ""),
		TTS:       tts.NewSilence(),
		Store:     statestore.NewMemoryStore(),
	})
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing gateway: %v", err)
	}
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling event: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("writing event: %v", err)
	}
}

func startEvent(callSID, streamSID string) Message {
	return Message{
		Event: EventStart,
		Start: &StartPayload{
			AccountSID: "AC-test",
			CallSID:    callSID,
			StreamSID:  streamSID,
			MediaFormat: MediaFormat{
				Encoding:   "audio/x-mulaw",
				SampleRate: audio.SampleRateWire,
				Channels:   1,
			},
		},
	}
}

// voicedPayload is one 20ms mu-law frame of a tone the voice gate
// accepts, base64 encoded for the wire.
func voicedPayload() string {
	samples := make([]int16, audio.SampleRateWire/50)
	for i := range samples {
		samples[i] = int16(9000 * math.Sin(2*math.Pi*200*float64(i)/float64(audio.SampleRateWire)))
	}
	return base64.StdEncoding.EncodeToString(audio.EncodeMulaw(samples))
}

func TestGatewayRespondsToCallerSpeech(t *testing.T) {
	gw := testGateway(GatewayConfig{ReengageAfter: time.Minute})
	srv := httptest.NewServer(gw)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	sendEvent(t, conn, startEvent("CA-speech", "MZ-speech"))

	// Collect outbound events while feeding caller audio.
	var mu sync.Mutex
	var mediaEvents []Message
	go func() {
		for {
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg Message
			if json.Unmarshal(data, &msg) == nil && msg.Event == EventMedia {
				mu.Lock()
				mediaEvents = append(mediaEvents, msg)
				mu.Unlock()
			}
		}
	}()

	payload := voicedPayload()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(mediaEvents)
		mu.Unlock()
		if n > 0 {
			break
		}
		sendEvent(t, conn, Message{Event: EventMedia, Media: &MediaPayload{Payload: payload}})
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(mediaEvents) == 0 {
		t.Fatal("no outbound media events received")
	}
	got := mediaEvents[0]
	if got.StreamSID != "MZ-speech" {
		t.Errorf("outbound streamSid = %q, want MZ-speech", got.StreamSID)
	}
	if got.Media == nil {
		t.Fatal("outbound media event has no payload")
	}
	if _, err := base64.StdEncoding.DecodeString(got.Media.Payload); err != nil {
		t.Errorf("outbound payload is not valid base64: %v", err)
	}
}

func TestGatewayStopEndsSessionAndPersists(t *testing.T) {
	store := statestore.NewMemoryStore()
	gw := NewGateway(GatewayConfig{ReengageAfter: time.Minute}, Deps{
		ASR:       &stubASR{},
		Generator: llm.NewResponseGenerator(stubLLM{}, ""),
		TTS:       tts.NewSilence(),
		Store:     store,
	})
	srv := httptest.NewServer(gw)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	sendEvent(t, conn, startEvent("CA-stop", "MZ-stop"))

	waitFor(t, time.Second, func() bool { return gw.Registry().Len() == 1 })

	sendEvent(t, conn, Message{Event: EventStop, Stop: &StopPayload{CallSID: "CA-stop"}})

	waitFor(t, 5*time.Second, func() bool { return gw.Registry().Len() == 0 })

	state, err := store.Load(context.Background(), "CA-stop")
	if err != nil {
		t.Fatalf("loading persisted state: %v", err)
	}
	if state.EndTime.IsZero() {
		t.Error("persisted EndTime not set")
	}
}

func TestGatewayRejectsOverCapacity(t *testing.T) {
	gw := testGateway(GatewayConfig{MaxConcurrentCalls: 1, ReengageAfter: time.Minute})
	srv := httptest.NewServer(gw)
	defer srv.Close()

	first := dial(t, srv)
	defer first.Close()
	sendEvent(t, first, startEvent("CA-one", "MZ-one"))
	waitFor(t, time.Second, func() bool { return gw.Registry().Len() == 1 })

	second := dial(t, srv)
	defer second.Close()
	sendEvent(t, second, startEvent("CA-two", "MZ-two"))

	// The gateway drops the rejected connection.
	second.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := second.ReadMessage(); err != nil {
			break
		}
	}
	if gw.Registry().Len() != 1 {
		t.Errorf("Registry().Len() = %d, want 1", gw.Registry().Len())
	}
}

func TestGatewaySurvivesMalformedEvents(t *testing.T) {
	gw := testGateway(GatewayConfig{ReengageAfter: time.Minute})
	srv := httptest.NewServer(gw)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("writing garbage: %v", err)
	}
	sendEvent(t, conn, startEvent("CA-garbled", "MZ-garbled"))
	sendEvent(t, conn, Message{Event: EventMedia, Media: &MediaPayload{Payload: "%%%not-base64%%%"}})

	waitFor(t, time.Second, func() bool { return gw.Registry().Len() == 1 })
}

func TestGatewayShutdownClosesSessions(t *testing.T) {
	gw := testGateway(GatewayConfig{ReengageAfter: time.Minute})
	srv := httptest.NewServer(gw)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	sendEvent(t, conn, startEvent("CA-shut", "MZ-shut"))
	waitFor(t, time.Second, func() bool { return gw.Registry().Len() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if gw.Registry().Len() != 0 {
		t.Errorf("Registry().Len() after shutdown = %d, want 0", gw.Registry().Len())
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
