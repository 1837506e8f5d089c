package llm

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
	ollamaChatCompletionsPath = "/v1/chat/completions"

	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.2"

	// Local inference on the critical path of a call. Longer than a
	// hosted API would get, but still bounded so the watchdog can
	// apologize instead of leaving the caller in silence.
	defaultOllamaTimeout = 30 * time.Second

	ollamaServerErrorThreshold = 500
)

// OllamaService generates completions with an Ollama server through its
// OpenAI-compatible chat endpoint.
type OllamaService struct {
	baseURL   string
	model     string
	keepAlive string
	client    *http.Client
}

// OllamaOption configures the Ollama service.
type OllamaOption func(*OllamaService)

// WithOllamaBaseURL sets the server URL.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(s *OllamaService) {
		s.baseURL = url
	}
}

// WithOllamaModel sets the model name.
func WithOllamaModel(model string) OllamaOption {
	return func(s *OllamaService) {
		s.model = model
	}
}

// WithOllamaKeepAlive sets how long the server keeps the model loaded
// between requests (e.g. "5m"). Unloading mid-call adds seconds of
// latency to the next turn.
func WithOllamaKeepAlive(keepAlive string) OllamaOption {
	return func(s *OllamaService) {
		s.keepAlive = keepAlive
	}
}

// WithOllamaClient sets a custom HTTP client.
func WithOllamaClient(client *http.Client) OllamaOption {
	return func(s *OllamaService) {
		s.client = client
	}
}

// NewOllama creates an Ollama LLM service. Ollama requires no API key.
func NewOllama(opts ...OllamaOption) *OllamaService {
	s := &OllamaService{
		baseURL:   defaultOllamaBaseURL,
		model:     defaultOllamaModel,
		keepAlive: "5m",
		client:    &http.Client{Timeout: defaultOllamaTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *OllamaService) Name() string {
	return "ollama"
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model       string          `json:"model"`
	Messages    []ollamaMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	Stream      bool            `json:"stream"`
	KeepAlive   string          `json:"keep_alive,omitempty"`
}

type ollamaResponse struct {
	Choices []struct {
		Message      ollamaMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Generate produces a completion for the prompt.
func (s *OllamaService) Generate(
	ctx context.Context, prompt string, config GenerationConfig,
) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	model := config.Model
	if model == "" {
		model = s.model
	}

	messages := make([]ollamaMessage, 0, 2)
	if config.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: config.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: prompt})

	reqBody := ollamaRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
		KeepAlive:   s.keepAlive,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, s.baseURL+ollamaChatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.CollaboratorCall("llm", s.Name(), "", "model", model, "prompt_len", len(prompt))

	resp, err := s.client.Do(req)
	if err != nil {
		logger.CollaboratorError("llm", s.Name(), "", err)
		return "", NewGenerationError(s.Name(), "", "request failed", err, true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := s.handleError(resp.StatusCode, body)
		logger.CollaboratorError("llm", s.Name(), "", apiErr)
		return "", apiErr
	}

	var result ollamaResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return "", NewGenerationError(s.Name(), result.Error.Code, result.Error.Message, nil, false)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return result.Choices[0].Message.Content, nil
}

func (s *OllamaService) handleError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return NewGenerationError(
			s.Name(),
			fmt.Sprintf("%d", statusCode),
			string(body),
			nil,
			statusCode >= ollamaServerErrorThreshold,
		)
	}

	retryable := statusCode == http.StatusTooManyRequests ||
		statusCode >= ollamaServerErrorThreshold

	var cause error
	if statusCode == http.StatusTooManyRequests {
		cause = ErrRateLimited
	}

	return NewGenerationError(s.Name(), errResp.Error.Code, errResp.Error.Message, cause, retryable)
}
