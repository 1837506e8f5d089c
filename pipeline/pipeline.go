package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/CallBridge/asr"
	"github.com/AltairaLabs/CallBridge/audio"
	"github.com/AltairaLabs/CallBridge/conversation"
	"github.com/AltairaLabs/CallBridge/dsp"
	"github.com/AltairaLabs/CallBridge/llm"
	"github.com/AltairaLabs/CallBridge/logger"
	promexp "github.com/AltairaLabs/CallBridge/metrics/prometheus"
	"github.com/AltairaLabs/CallBridge/statestore"
	"github.com/AltairaLabs/CallBridge/tts"
)

// Timing and capacity parameters. Ingest and egress tick at the
// telephony frame cadence; the watchdog is deliberately coarse.
const (
	ingestTick   = 20 * time.Millisecond
	egressTick   = 20 * time.Millisecond
	watchdogTick = 500 * time.Millisecond

	// ingestBatchFrames frames per ingest cycle, roughly 200 ms of
	// wire audio.
	ingestBatchFrames = 10

	// inboundCapacity bounds buffered caller audio to about one
	// second.
	inboundCapacity = 50

	// outboundCapacity bounds queued assistant audio to roughly ten
	// seconds of 20 ms chunks.
	outboundCapacity = 512

	// minUtteranceDuration of accumulated speech before transcription
	// is attempted.
	minUtteranceDuration = 300 * time.Millisecond

	// DefaultForcedResponseAfter is how long caller silence may grow
	// before a pending transcript is answered even without an explicit
	// end-of-turn signal.
	DefaultForcedResponseAfter = 3 * time.Second

	// DefaultReengageAfter is how long total silence may grow before
	// the assistant prompts an idle caller. Fired at most once per
	// idle period.
	DefaultReengageAfter = 5 * time.Second

	// MarkInterrupted is the mark name signalled to the transport on
	// barge-in.
	MarkInterrupted = "interrupted"
)

const minUtteranceSamples = audio.SampleRateASR * int(minUtteranceDuration/time.Millisecond) / 1000

// Transport is the outbound half of the session's media stream.
type Transport interface {
	// SendAudio transmits one mu-law 8 kHz payload.
	SendAudio(payload []byte) error

	// SendMark transmits a named marker event.
	SendMark(name string) error
}

// Config configures one call's pipeline.
type Config struct {
	CallSID   string
	StreamSID string

	EnableEchoCancellation bool
	EnableNoiseReduction   bool

	// VADAggressiveness is the detector strictness, 0 to 3.
	VADAggressiveness int

	// FilterBackchannels suppresses short acknowledgements from the
	// interruption path.
	FilterBackchannels bool

	// ForcedResponseAfter and ReengageAfter override the silence
	// thresholds. Zero means the defaults.
	ForcedResponseAfter time.Duration
	ReengageAfter       time.Duration
}

// Deps are the pipeline's collaborators. Transport, ASR, Generator, and
// TTS are required; Store and Tracer are optional.
type Deps struct {
	Transport Transport
	ASR       asr.Service
	Generator *llm.ResponseGenerator
	TTS       tts.Service
	Store     statestore.Store
	Tracer    trace.Tracer
}

// Pipeline orchestrates one call: it owns the bounded queues, the
// conditioning chain, and the conversation components, and drives the
// ingest, egress, and watchdog loops.
type Pipeline struct {
	cfg  Config
	deps Deps

	machine       *conversation.Machine
	turns         *conversation.TurnManager
	interruptions *conversation.Handler
	convCtx       *conversation.Context

	vad   *audio.Detector
	echo  *dsp.EchoCanceller
	noise *dsp.NoiseReducer

	inbound  *frameQueue
	outbound *chunkQueue

	mu               sync.Mutex
	utterance        []int16
	pending          string
	lastSpeech       time.Time
	callerSpeechFrom time.Time
	speaking         bool
	synthDone        bool
	reengaged        bool
	startTime        time.Time

	now func() time.Time
}

// New creates a Pipeline for one call.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.ForcedResponseAfter == 0 {
		cfg.ForcedResponseAfter = DefaultForcedResponseAfter
	}
	if cfg.ReengageAfter == 0 {
		cfg.ReengageAfter = DefaultReengageAfter
	}

	vadParams := audio.DefaultDetectorParams()
	vadParams.Aggressiveness = cfg.VADAggressiveness

	p := &Pipeline{
		cfg:           cfg,
		deps:          deps,
		machine:       conversation.NewMachine(cfg.CallSID),
		turns:         conversation.NewTurnManager(),
		interruptions: conversation.NewHandler(cfg.FilterBackchannels),
		convCtx:       conversation.NewContext(conversation.DefaultMaxTurns),
		vad:           audio.NewDetector(vadParams),
		echo:          dsp.NewEchoCanceller(dsp.DefaultFilterLength, dsp.DefaultStepSize),
		noise:         dsp.NewNoiseReducer(dsp.DefaultReductionDB, dsp.DefaultCalibrationChunks),
		inbound:       newFrameQueue(inboundCapacity),
		outbound:      newChunkQueue(outboundCapacity),
		now:           time.Now,
	}
	return p
}

// Ingest enqueues one inbound frame. Never blocks; under backpressure
// the oldest queued frame is dropped.
func (p *Pipeline) Ingest(data []byte, timestamp time.Time) {
	if p.inbound.Push(Frame{Data: data, Timestamp: timestamp}) {
		promexp.RecordAudioFrameDropped()
	}
	promexp.RecordAudioFrame("inbound")
}

// State returns the current lifecycle state.
func (p *Pipeline) State() conversation.State {
	return p.machine.State()
}

// Context returns the call's conversation context.
func (p *Pipeline) Context() *conversation.Context {
	return p.convCtx
}

// QueuedOutbound returns the number of queued outbound chunks.
func (p *Pipeline) QueuedOutbound() int {
	return p.outbound.Len()
}

// Run drives the three loops until ctx is cancelled or the transport
// fails, then tears the call down: final state transitions, state
// persistence, and metrics. Run blocks for the life of the call.
func (p *Pipeline) Run(ctx context.Context) error {
	start := p.now()
	p.mu.Lock()
	p.startTime = start
	p.lastSpeech = start
	p.mu.Unlock()

	p.machine.TransitionTo(conversation.StateListening)
	promexp.RecordCallStart()
	logger.Info("pipeline started", "call_sid", p.cfg.CallSID)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.ingestLoop(ctx) })
	g.Go(func() error { return p.egressLoop(ctx) })
	g.Go(func() error { return p.watchdogLoop(ctx) })
	err := g.Wait()

	p.teardown(err)

	status := "completed"
	if err != nil {
		status = "failed"
	}
	promexp.RecordCallEnd(status, p.now().Sub(start).Seconds())
	logger.Info("pipeline stopped", "call_sid", p.cfg.CallSID, "status", status)
	return err
}

// teardown walks the machine to Ended and persists final state.
func (p *Pipeline) teardown(runErr error) {
	for _, next := range []conversation.State{
		conversation.StateListening,
		conversation.StateEnding,
		conversation.StateEnded,
	} {
		if p.machine.CanTransitionTo(next) {
			p.machine.TransitionTo(next)
		}
	}

	if p.deps.Store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	turns := p.convCtx.Turns()
	records := make([]statestore.TurnRecord, len(turns))
	for i, t := range turns {
		records[i] = statestore.TurnRecord{
			Caller:    t.Caller,
			Assistant: t.Assistant,
			Timestamp: t.Timestamp,
			Sequence:  t.Sequence,
		}
	}

	p.mu.Lock()
	startTime := p.startTime
	p.mu.Unlock()

	state := &statestore.CallState{
		CallSID:       p.cfg.CallSID,
		StreamSID:     p.cfg.StreamSID,
		StartTime:     startTime,
		EndTime:       p.now(),
		Turns:         records,
		TurnCount:     p.convCtx.TurnCount(),
		Interruptions: p.interruptions.Stats().Total,
	}
	if runErr != nil {
		state.Metadata = map[string]any{"error": runErr.Error()}
	}
	if err := p.deps.Store.Save(ctx, state); err != nil {
		logger.Error("failed to persist call state", "call_sid", p.cfg.CallSID, "error", err)
	}
}

// ingestLoop drains, conditions, and voice-gates inbound audio on a
// fixed tick.
func (p *Pipeline) ingestLoop(ctx context.Context) error {
	ticker := time.NewTicker(ingestTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.ingestCycle(ctx)
		}
	}
}

func (p *Pipeline) ingestCycle(ctx context.Context) {
	frames := p.inbound.PopBatch(ingestBatchFrames)
	if len(frames) == 0 {
		return
	}

	var encoded []byte
	for _, f := range frames {
		encoded = append(encoded, f.Data...)
	}
	pcm := audio.DecodeMulaw(encoded)

	if p.cfg.EnableEchoCancellation {
		pcm = p.echo.Process(pcm, nil)
	}
	if p.cfg.EnableNoiseReduction {
		pcm = p.noise.Process(pcm)
	}

	resampled, err := audio.Resample(pcm, audio.SampleRateWire, audio.SampleRateASR)
	if err != nil {
		logger.Warn("resample failed, dropping batch", "call_sid", p.cfg.CallSID, "error", err)
		return
	}

	speech := p.vad.IsSpeech(resampled, audio.SampleRateASR)
	promexp.RecordVADDetection(speech)

	if !speech {
		if p.turns.IsUserSpeaking() {
			p.turns.EndSpeech()
		}
		return
	}

	now := p.now()
	p.mu.Lock()
	if !p.turns.IsUserSpeaking() {
		p.callerSpeechFrom = now
	}
	p.lastSpeech = now
	p.reengaged = false
	p.utterance = append(p.utterance, resampled...)
	ready := len(p.utterance) >= minUtteranceSamples
	var utterance []int16
	if ready {
		utterance = p.utterance
		p.utterance = nil
	}
	p.mu.Unlock()

	p.turns.StartSpeech()

	if ready {
		p.transcribe(ctx, utterance)
	}
}

// transcribe hands an accumulated utterance to the ASR collaborator and
// routes the transcript to interruption or turn handling. ASR failure
// is treated as no speech recognized.
func (p *Pipeline) transcribe(ctx context.Context, utterance []int16) {
	data := audio.SamplesToBytes(utterance)

	start := p.now()
	text, err := p.deps.ASR.Transcribe(ctx, data, asr.DefaultTranscriptionConfig())
	status := "success"
	if err != nil {
		status = "error"
		logger.Warn("transcription failed", "call_sid", p.cfg.CallSID, "error", err)
		text = ""
	}
	promexp.RecordCollaboratorRequest("asr", p.deps.ASR.Name(), status, p.now().Sub(start).Seconds())

	if text == "" {
		return
	}

	p.mu.Lock()
	if p.pending == "" {
		p.pending = text
	} else {
		p.pending += " " + text
	}
	pending := p.pending
	speaking := p.speaking
	speechFrom := p.callerSpeechFrom
	lastSpeech := p.lastSpeech
	p.mu.Unlock()

	if speaking {
		if p.interruptions.DetectInterruption(text, true) {
			promexp.RecordInterruption()
			if p.turns.IsInterruption(true) && p.interruptions.ShouldStopSpeaking(p.now().Sub(speechFrom)) {
				p.HandleInterruption()
			}
		}
		return
	}

	if p.turns.IsTurnComplete(pending, p.now().Sub(lastSpeech)) {
		p.completeTurn(ctx)
	}
}

// completeTurn finalizes the pending transcript: generates a reply and
// queues its synthesis. Finalization happens at most once per
// accumulated transcript.
func (p *Pipeline) completeTurn(ctx context.Context) {
	p.mu.Lock()
	transcript := p.pending
	p.pending = ""
	p.mu.Unlock()

	if transcript == "" {
		return
	}
	if !p.machine.TransitionTo(conversation.StateProcessing) {
		return
	}

	if p.deps.Tracer != nil {
		var span trace.Span
		ctx, span = p.deps.Tracer.Start(ctx, "pipeline.turn",
			trace.WithAttributes(attribute.String("call.sid", p.cfg.CallSID)))
		defer span.End()
	}

	p.turns.Reset()

	start := p.now()
	reply, err := p.deps.Generator.Generate(ctx, transcript, p.convCtx)
	status := "success"
	if err != nil {
		status = "error"
	}
	promexp.RecordCollaboratorRequest("llm", p.deps.Generator.Provider(), status, p.now().Sub(start).Seconds())

	p.convCtx.AddTurn(transcript, reply)
	promexp.RecordTurn()

	if !p.machine.TransitionTo(conversation.StateSpeaking) {
		return
	}
	p.speak(ctx, reply)
}

// speak synthesizes text and enqueues the resulting chunks in order.
// Synthesis failure degrades to silence; the call continues.
func (p *Pipeline) speak(ctx context.Context, text string) {
	p.mu.Lock()
	p.speaking = true
	p.synthDone = false
	p.mu.Unlock()
	p.interruptions.StartAssistantSpeech()

	start := p.now()
	ch, err := p.deps.TTS.Synthesize(ctx, text, tts.DefaultSynthesisConfig())
	if err != nil {
		promexp.RecordCollaboratorRequest("tts", p.deps.TTS.Name(), "error", p.now().Sub(start).Seconds())
		logger.Warn("synthesis failed, continuing without audio", "call_sid", p.cfg.CallSID, "error", err)
		p.finishSpeaking()
		return
	}

	status := "success"
	for chunk := range ch {
		if chunk.Error != nil {
			status = "error"
			logger.Warn("synthesis stream failed", "call_sid", p.cfg.CallSID, "error", chunk.Error)
			break
		}
		if len(chunk.Data) == 0 {
			continue
		}
		out := outChunk{
			pcm:        audio.BytesToSamples(chunk.Data),
			sampleRate: p.deps.TTS.SampleRate(),
		}
		if !p.outbound.Push(out) {
			logger.Warn("outbound queue full, truncating reply", "call_sid", p.cfg.CallSID)
			break
		}
	}
	promexp.RecordCollaboratorRequest("tts", p.deps.TTS.Name(), status, p.now().Sub(start).Seconds())

	p.mu.Lock()
	p.synthDone = true
	empty := p.outbound.Len() == 0
	p.mu.Unlock()
	if empty {
		p.finishSpeaking()
	}
}

// finishSpeaking returns the floor to the caller.
func (p *Pipeline) finishSpeaking() {
	p.mu.Lock()
	wasSpeaking := p.speaking
	p.speaking = false
	p.mu.Unlock()
	if !wasSpeaking {
		return
	}
	p.interruptions.EndAssistantSpeech()
	p.machine.TransitionTo(conversation.StateListening)
}

// egressLoop transmits one queued chunk per tick, pacing output to real
// time so the far end never receives audio faster than it can play it.
func (p *Pipeline) egressLoop(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(egressTick), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		chunk, ok := p.outbound.Pop()
		if !ok {
			p.mu.Lock()
			done := p.speaking && p.synthDone
			p.mu.Unlock()
			if done {
				p.finishSpeaking()
			}
			continue
		}

		pcm, err := audio.Resample(chunk.pcm, chunk.sampleRate, audio.SampleRateWire)
		if err != nil {
			logger.Warn("egress resample failed, skipping chunk", "call_sid", p.cfg.CallSID, "error", err)
			continue
		}
		if err := p.deps.Transport.SendAudio(audio.EncodeMulaw(pcm)); err != nil {
			return fmt.Errorf("transport send failed: %w", err)
		}
		promexp.RecordAudioFrame("outbound")
	}
}

// watchdogLoop inspects caller silence on a coarse tick: it completes
// overdue turns and re-engages idle callers.
func (p *Pipeline) watchdogLoop(ctx context.Context) error {
	ticker := time.NewTicker(watchdogTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.watchdogCycle(ctx)
		}
	}
}

func (p *Pipeline) watchdogCycle(ctx context.Context) {
	now := p.now()
	p.mu.Lock()
	pending := p.pending
	silence := now.Sub(p.lastSpeech)
	speaking := p.speaking
	reengaged := p.reengaged
	p.mu.Unlock()

	if speaking {
		return
	}

	if pending != "" {
		if silence > p.cfg.ForcedResponseAfter || p.turns.IsTurnComplete(pending, silence) {
			p.completeTurn(ctx)
		}
		return
	}

	if silence > p.cfg.ReengageAfter && !reengaged {
		p.mu.Lock()
		p.reengaged = true
		p.lastSpeech = now
		p.mu.Unlock()

		logger.Info("re-engaging idle caller", "call_sid", p.cfg.CallSID)
		if !p.machine.TransitionTo(conversation.StateProcessing) {
			return
		}
		if !p.machine.TransitionTo(conversation.StateSpeaking) {
			return
		}
		p.speak(ctx, llm.ReengagementPrompt)
	}
}

// HandleInterruption stops assistant playback: the outbound queue is
// cleared wholesale, the speaking flag drops, and the transport is
// signalled with an interruption marker.
func (p *Pipeline) HandleInterruption() {
	dropped := p.outbound.Clear()

	p.mu.Lock()
	p.speaking = false
	p.synthDone = true
	p.mu.Unlock()
	p.interruptions.EndAssistantSpeech()

	p.machine.TransitionTo(conversation.StateInterrupted)
	p.machine.TransitionTo(conversation.StateListening)

	if err := p.deps.Transport.SendMark(MarkInterrupted); err != nil {
		logger.Warn("failed to signal interruption", "call_sid", p.cfg.CallSID, "error", err)
	}
	logger.Info("interruption handled", "call_sid", p.cfg.CallSID, "chunks_dropped", dropped)
}
