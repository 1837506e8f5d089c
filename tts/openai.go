package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AltairaLabs/CallBridge/logger"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openAITTSEndpoint = "/audio/speech"

	// ModelTTS1 is the OpenAI TTS model optimized for speed.
	ModelTTS1 = "tts-1"
	// ModelTTS1HD is the OpenAI TTS model optimized for quality.
	ModelTTS1HD = "tts-1-hd"

	// openAISampleRate is the fixed PCM rate of the speech endpoint.
	// The pipeline downsamples to the 8 kHz wire rate.
	openAISampleRate = 24000

	defaultOpenAITimeout = 30 * time.Second

	openAIServerErrorThreshold = 500
)

// OpenAI voices.
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// OpenAIService synthesizes speech with an OpenAI-compatible speech
// endpoint, requesting raw PCM and delivering it in paced chunks.
type OpenAIService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
	voice   string
	speed   float64
}

// OpenAIOption configures the OpenAI TTS service.
type OpenAIOption func(*OpenAIService)

// WithOpenAIBaseURL sets a custom base URL (for testing or proxies).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(s *OpenAIService) {
		s.baseURL = url
	}
}

// WithOpenAIClient sets a custom HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(s *OpenAIService) {
		s.client = client
	}
}

// WithOpenAIModel sets the TTS model to use.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *OpenAIService) {
		s.model = model
	}
}

// WithOpenAIVoice sets the default voice used when a synthesis config
// does not name one.
func WithOpenAIVoice(voice string) OpenAIOption {
	return func(s *OpenAIService) {
		s.voice = voice
	}
}

// WithOpenAISpeed sets the default speaking speed.
func WithOpenAISpeed(speed float64) OpenAIOption {
	return func(s *OpenAIService) {
		s.speed = speed
	}
}

// NewOpenAI creates an OpenAI TTS service.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIService {
	s := &OpenAIService{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		client:  &http.Client{Timeout: defaultOpenAITimeout},
		model:   ModelTTS1,
		voice:   VoiceAlloy,
		speed:   1.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *OpenAIService) Name() string {
	return "openai"
}

// SampleRate returns the PCM rate of delivered chunks.
func (s *OpenAIService) SampleRate() int {
	return openAISampleRate
}

type openAIRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize converts text to audio.
func (s *OpenAIService) Synthesize(
	ctx context.Context, text string, config SynthesisConfig,
) (<-chan AudioChunk, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	voice := config.Voice
	if voice == "" {
		voice = s.voice
	}
	speed := config.Speed
	if speed == 0 {
		speed = s.speed
	}
	model := config.Model
	if model == "" {
		model = s.model
	}

	reqBody := openAIRequest{
		Model:          model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "pcm",
		Speed:          speed,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, s.baseURL+openAITTSEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	logger.CollaboratorCall("tts", s.Name(), "", "voice", voice, "text_len", len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		logger.CollaboratorError("tts", s.Name(), "", err)
		return nil, NewSynthesisError(s.Name(), "", "request failed", err, true)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		apiErr := s.handleError(resp)
		logger.CollaboratorError("tts", s.Name(), "", apiErr)
		return nil, apiErr
	}

	out := make(chan AudioChunk, 8)
	go func() {
		defer resp.Body.Close()
		pcm, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			out <- AudioChunk{Error: fmt.Errorf("failed to read audio: %w", readErr)}
			close(out)
			return
		}
		deliverPCM(ctx, out, pcm, openAISampleRate)
	}()
	return out, nil
}

func (s *OpenAIService) handleError(resp *http.Response) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return NewSynthesisError(
			s.Name(),
			fmt.Sprintf("%d", resp.StatusCode),
			"unknown error",
			err,
			resp.StatusCode >= openAIServerErrorThreshold,
		)
	}

	retryable := resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= openAIServerErrorThreshold

	var cause error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		cause = ErrRateLimited
	case http.StatusUnauthorized:
		cause = fmt.Errorf("invalid API key")
	case http.StatusBadRequest:
		if errResp.Error.Code == "invalid_voice" {
			cause = ErrInvalidVoice
		}
	}

	return NewSynthesisError(s.Name(), errResp.Error.Code, errResp.Error.Message, cause, retryable)
}
