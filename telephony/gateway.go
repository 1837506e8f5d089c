package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/CallBridge/asr"
	"github.com/AltairaLabs/CallBridge/llm"
	"github.com/AltairaLabs/CallBridge/logger"
	promexp "github.com/AltairaLabs/CallBridge/metrics/prometheus"
	"github.com/AltairaLabs/CallBridge/pipeline"
	"github.com/AltairaLabs/CallBridge/statestore"
	"github.com/AltairaLabs/CallBridge/tts"
)

// defaultReadLimit caps inbound websocket messages. Media frames are a
// few hundred bytes; anything near this limit is malformed.
const defaultReadLimit = 1 << 20

// GatewayConfig configures the media-stream gateway.
type GatewayConfig struct {
	// MaxConcurrentCalls caps live sessions. Zero means unbounded.
	MaxConcurrentCalls int

	// Audio conditioning and turn-taking knobs passed through to each
	// call's pipeline.
	EnableEchoCancellation bool
	EnableNoiseReduction   bool
	VADAggressiveness      int
	FilterBackchannels     bool
	ForcedResponseAfter    time.Duration
	ReengageAfter          time.Duration

	// WriteWait overrides the outbound write timeout. Zero means
	// DefaultWriteWait.
	WriteWait time.Duration
}

// Deps are the per-call collaborators the gateway hands to each
// pipeline it creates.
type Deps struct {
	ASR       asr.Service
	Generator *llm.ResponseGenerator
	TTS       tts.Service
	Store     statestore.Store
	Tracer    trace.Tracer
}

// Gateway accepts media-stream websocket connections and runs one
// pipeline per call.
type Gateway struct {
	cfg      GatewayConfig
	deps     Deps
	registry *Registry
	upgrader websocket.Upgrader
}

// NewGateway creates a Gateway.
func NewGateway(cfg GatewayConfig, deps Deps) *Gateway {
	if cfg.WriteWait == 0 {
		cfg.WriteWait = DefaultWriteWait
	}
	return &Gateway{
		cfg:      cfg,
		deps:     deps,
		registry: NewRegistry(cfg.MaxConcurrentCalls),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Media-stream providers connect server to server; there
			// is no browser origin to check.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Registry exposes the live session registry.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// ServeHTTP upgrades the request and drives the connection's read loop
// until the stream stops or the connection drops.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(defaultReadLimit)

	g.readLoop(r.Context(), conn)
}

// readLoop dispatches inbound events. The session is created on the
// start event and torn down when the loop exits for any reason.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn) {
	var session *Session
	defer func() {
		if session != nil {
			g.endSession(session)
		} else {
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("media stream closed by peer")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("media stream connection lost", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("discarding malformed media-stream event", "error", err)
			continue
		}

		switch msg.Event {
		case EventConnected:
			logger.Debug("media stream connected")

		case EventStart:
			if session != nil {
				logger.Warn("duplicate start event on live session", "call_sid", session.CallSID)
				continue
			}
			session, err = g.startSession(ctx, conn, msg.Start)
			if err != nil {
				logger.Warn("rejecting call", "error", err)
				promexp.RecordCallRejected()
				return
			}

		case EventMedia:
			if session == nil || msg.Media == nil {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				logger.Warn("discarding undecodable media payload",
					"call_sid", session.CallSID, "error", err)
				continue
			}
			session.pipeline.Ingest(payload, time.Now())

		case EventStop:
			if session != nil {
				logger.Info("media stream stopped", "call_sid", session.CallSID)
			}
			return

		case EventMark:
			if session != nil && msg.Mark != nil {
				logger.Debug("mark acknowledged", "call_sid", session.CallSID, "name", msg.Mark.Name)
			}

		default:
			logger.Debug("ignoring unknown media-stream event", "event", msg.Event)
		}
	}
}

// startSession registers a session for the announced stream and starts
// its pipeline.
func (g *Gateway) startSession(ctx context.Context, conn *websocket.Conn, start *StartPayload) (*Session, error) {
	if start == nil || start.CallSID == "" {
		return nil, ErrMissingCallSID
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session := &Session{
		ID:        uuid.NewString(),
		CallSID:   start.CallSID,
		StreamSID: start.StreamSID,
		conn:      conn,
		writeWait: g.cfg.WriteWait,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	if err := g.registry.Add(session); err != nil {
		cancel()
		return nil, err
	}

	pcfg := pipeline.Config{
		CallSID:                start.CallSID,
		StreamSID:              start.StreamSID,
		EnableEchoCancellation: g.cfg.EnableEchoCancellation,
		EnableNoiseReduction:   g.cfg.EnableNoiseReduction,
		VADAggressiveness:      g.cfg.VADAggressiveness,
		FilterBackchannels:     g.cfg.FilterBackchannels,
		ForcedResponseAfter:    g.cfg.ForcedResponseAfter,
		ReengageAfter:          g.cfg.ReengageAfter,
	}
	session.pipeline = pipeline.New(pcfg, pipeline.Deps{
		Transport: session,
		ASR:       g.deps.ASR,
		Generator: g.deps.Generator,
		TTS:       g.deps.TTS,
		Store:     g.deps.Store,
		Tracer:    g.deps.Tracer,
	})

	logger.Info("call session started",
		"session_id", session.ID,
		"call_sid", session.CallSID,
		"stream_sid", session.StreamSID)

	go func() {
		defer close(session.done)
		if err := session.pipeline.Run(runCtx); err != nil {
			logger.Error("pipeline failed", "call_sid", session.CallSID, "error", err)
			session.Close()
		}
	}()

	return session, nil
}

// endSession cancels the pipeline, waits for it to finish teardown, and
// releases the registry slot.
func (g *Gateway) endSession(session *Session) {
	session.Close()

	select {
	case <-session.done:
	case <-time.After(10 * time.Second):
		logger.Warn("pipeline teardown timed out", "call_sid", session.CallSID)
	}

	g.registry.Remove(session.CallSID)
	logger.Info("call session ended", "session_id", session.ID, "call_sid", session.CallSID)
}

// Shutdown closes every live session and waits for their pipelines,
// bounded by ctx.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.registry.CloseAll()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if g.registry.Len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
