package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/AltairaLabs/CallBridge/logger"
)

const (
	whisperBaseURL  = "https://api.openai.com/v1"
	whisperEndpoint = "/audio/transcriptions"

	// ModelWhisper1 is the default Whisper transcription model.
	ModelWhisper1 = "whisper-1"

	// Transcription sits on the critical path of a live call, so the
	// timeout is far tighter than for offline batch transcription.
	defaultWhisperTimeout = 10 * time.Second

	serverErrorThreshold = 500
)

// WhisperService transcribes audio with an OpenAI-compatible Whisper
// endpoint.
type WhisperService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
}

// WhisperOption configures the Whisper service.
type WhisperOption func(*WhisperService)

// WithWhisperBaseURL sets a custom base URL (for testing, proxies, or
// self-hosted Whisper servers).
func WithWhisperBaseURL(url string) WhisperOption {
	return func(s *WhisperService) {
		s.baseURL = url
	}
}

// WithWhisperClient sets a custom HTTP client.
func WithWhisperClient(client *http.Client) WhisperOption {
	return func(s *WhisperService) {
		s.client = client
	}
}

// WithWhisperModel sets the transcription model.
func WithWhisperModel(model string) WhisperOption {
	return func(s *WhisperService) {
		s.model = model
	}
}

// NewWhisper creates a Whisper ASR service.
func NewWhisper(apiKey string, opts ...WhisperOption) *WhisperService {
	s := &WhisperService{
		apiKey:  apiKey,
		baseURL: whisperBaseURL,
		client:  &http.Client{Timeout: defaultWhisperTimeout},
		model:   ModelWhisper1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *WhisperService) Name() string {
	return "whisper"
}

// Transcribe converts audio to text. PCM input is wrapped as WAV before
// upload.
func (s *WhisperService) Transcribe(
	ctx context.Context, audio []byte, config TranscriptionConfig,
) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	format := config.Format
	if format == "" {
		format = FormatPCM
	}
	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	channels := config.Channels
	if channels == 0 {
		channels = DefaultChannels
	}
	bitDepth := config.BitDepth
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}

	audioData := audio
	filename := "audio." + format
	if format == FormatPCM {
		audioData = WrapPCMAsWAV(audio, sampleRate, channels, bitDepth)
		filename = "audio.wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	model := config.Model
	if model == "" {
		model = s.model
	}
	if err := writer.WriteField("model", model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if config.Language != "" {
		if err := writer.WriteField("language", config.Language); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if config.Prompt != "" {
		if err := writer.WriteField("prompt", config.Prompt); err != nil {
			return "", fmt.Errorf("failed to write prompt field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+whisperEndpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	logger.CollaboratorCall("asr", s.Name(), "", "bytes", len(audioData), "model", model)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.CollaboratorError("asr", s.Name(), "", err)
		return "", NewTranscriptionError(s.Name(), "", "request failed", err, true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := s.handleError(resp.StatusCode, body)
		logger.CollaboratorError("asr", s.Name(), "", apiErr)
		return "", apiErr
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Text, nil
}

func (s *WhisperService) handleError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return NewTranscriptionError(
			s.Name(),
			fmt.Sprintf("%d", statusCode),
			string(body),
			nil,
			statusCode >= serverErrorThreshold,
		)
	}

	retryable := statusCode == http.StatusTooManyRequests ||
		statusCode >= serverErrorThreshold

	var cause error
	switch statusCode {
	case http.StatusTooManyRequests:
		cause = ErrRateLimited
	case http.StatusUnauthorized:
		cause = fmt.Errorf("invalid API key")
	case http.StatusBadRequest:
		if errResp.Error.Code == "audio_too_short" {
			cause = ErrAudioTooShort
		}
	}

	return NewTranscriptionError(s.Name(), errResp.Error.Code, errResp.Error.Message, cause, retryable)
}
