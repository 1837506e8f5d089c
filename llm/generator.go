package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/AltairaLabs/CallBridge/conversation"
	"github.com/AltairaLabs/CallBridge/logger"
)

const (
	// DefaultSystemPrompt establishes the assistant persona when the
	// operator configures none.
	DefaultSystemPrompt = "You are a helpful voice assistant on a phone call. " +
		"Keep responses brief and conversational, one or two sentences. " +
		"Do not use formatting, lists, or markdown; your words are spoken aloud."

	// historyTurns is how many recent exchanges are included in the
	// prompt. More history means more latency per token with little
	// gain for short calls.
	historyTurns = 5

	// FallbackNotUnderstood is spoken when a turn produced no usable
	// transcript or the provider rejected the request.
	FallbackNotUnderstood = "I'm sorry, I didn't quite catch that. Could you say that again?"

	// FallbackUnavailable is spoken when the provider is unreachable.
	FallbackUnavailable = "I apologize, I'm having trouble processing that right now. Please give me a moment."

	// ReengagementPrompt is spoken after prolonged caller silence.
	ReengagementPrompt = "Are you still there? I'm happy to help if you have any questions."
)

var (
	markdownPattern = regexp.MustCompile("[*_`#]+")
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// spokenReplacements expands text that reads fine but speaks badly.
var spokenReplacements = []struct {
	written string
	spoken  string
}{
	{"e.g.", "for example"},
	{"i.e.", "that is"},
	{"etc.", "and so on"},
	{"vs.", "versus"},
	{"&", " and "},
}

// ResponseGenerator turns a caller transcript plus conversation history
// into a speakable assistant reply. Provider failures degrade to a
// spoken fallback rather than an error so the call never goes silent.
type ResponseGenerator struct {
	service      Service
	systemPrompt string
	config       GenerationConfig
}

// GeneratorOption configures a ResponseGenerator.
type GeneratorOption func(*ResponseGenerator)

// WithTemperature overrides the sampling temperature.
func WithTemperature(temperature float64) GeneratorOption {
	return func(g *ResponseGenerator) {
		g.config.Temperature = temperature
	}
}

// WithMaxTokens overrides the completion length cap.
func WithMaxTokens(maxTokens int) GeneratorOption {
	return func(g *ResponseGenerator) {
		g.config.MaxTokens = maxTokens
	}
}

// WithModel overrides the service's default model.
func WithModel(model string) GeneratorOption {
	return func(g *ResponseGenerator) {
		g.config.Model = model
	}
}

// NewResponseGenerator creates a generator over the given service. An
// empty systemPrompt selects DefaultSystemPrompt.
func NewResponseGenerator(service Service, systemPrompt string, opts ...GeneratorOption) *ResponseGenerator {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	config := DefaultGenerationConfig()
	config.System = systemPrompt
	g := &ResponseGenerator{
		service:      service,
		systemPrompt: systemPrompt,
		config:       config,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a spoken-ready reply to transcript. The
// conversation history, when present, is prepended to the prompt. On
// provider failure the returned reply is a fallback and the error
// describes the failure; the reply is always speakable.
func (g *ResponseGenerator) Generate(
	ctx context.Context, transcript string, convCtx *conversation.Context,
) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return FallbackNotUnderstood, nil
	}

	prompt := g.buildPrompt(transcript, convCtx)

	raw, err := g.service.Generate(ctx, prompt, g.config)
	if err != nil {
		logger.Warn("response generation failed, using fallback",
			"provider", g.service.Name(), "error", err)
		return FallbackUnavailable, err
	}

	return ProcessForVoice(raw), nil
}

// Provider returns the underlying service's identifier.
func (g *ResponseGenerator) Provider() string {
	return g.service.Name()
}

// buildPrompt renders the recent history followed by the new caller
// utterance.
func (g *ResponseGenerator) buildPrompt(transcript string, convCtx *conversation.Context) string {
	if convCtx == nil {
		return transcript
	}
	history := convCtx.HistoryText(historyTurns)
	if history == "" {
		return transcript
	}
	return fmt.Sprintf("%s\nCaller: %s", history, transcript)
}

// ProcessForVoice rewrites model output for speech synthesis: markdown
// and URLs stripped, written-only abbreviations expanded, whitespace
// collapsed, and terminal punctuation guaranteed.
func ProcessForVoice(text string) string {
	out := markdownPattern.ReplaceAllString(text, "")
	out = urlPattern.ReplaceAllString(out, "link")

	for _, r := range spokenReplacements {
		out = strings.ReplaceAll(out, r.written, r.spoken)
	}

	out = spacePattern.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)
	if out == "" {
		return FallbackNotUnderstood
	}

	switch out[len(out)-1] {
	case '.', '!', '?':
	default:
		out += "."
	}
	return out
}
