package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AltairaLabs/CallBridge/tts"
)

func collect(t *testing.T, ch <-chan tts.AudioChunk) []tts.AudioChunk {
	t.Helper()
	var chunks []tts.AudioChunk
	timeout := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatal("timed out waiting for chunks")
		}
	}
}

func TestOpenAISynthesizeChunksPCM(t *testing.T) {
	// 100ms of 24kHz PCM.
	pcm := make([]byte, 24000*2/10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Input          string `json:"input"`
			Voice          string `json:"voice"`
			ResponseFormat string `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.ResponseFormat != "pcm" {
			t.Errorf("response_format = %q, want pcm", req.ResponseFormat)
		}
		if req.Voice != tts.VoiceAlloy {
			t.Errorf("voice = %q, want default alloy", req.Voice)
		}
		w.Write(pcm)
	}))
	defer server.Close()

	service := tts.NewOpenAI("test-api-key", tts.WithOpenAIBaseURL(server.URL))
	if service.SampleRate() != 24000 {
		t.Fatalf("SampleRate() = %d, want 24000", service.SampleRate())
	}

	ch, err := service.Synthesize(context.Background(), "Hello there.", tts.DefaultSynthesisConfig())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	chunks := collect(t, ch)
	// 100ms of audio in 20ms chunks.
	if len(chunks) != 5 {
		t.Fatalf("got %d chunks, want 5", len(chunks))
	}
	var total int
	for i, chunk := range chunks {
		if chunk.Error != nil {
			t.Fatalf("chunk %d carries error: %v", i, chunk.Error)
		}
		if chunk.Index != i {
			t.Errorf("chunk %d has Index %d", i, chunk.Index)
		}
		total += len(chunk.Data)
	}
	if total != len(pcm) {
		t.Errorf("total bytes = %d, want %d", total, len(pcm))
	}
	if !chunks[len(chunks)-1].Final {
		t.Error("last chunk not marked Final")
	}
}

func TestOpenAISynthesizeEmptyText(t *testing.T) {
	service := tts.NewOpenAI("test-api-key")
	_, err := service.Synthesize(context.Background(), "", tts.SynthesisConfig{})
	if !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}

func TestOpenAISynthesizeRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Rate limit exceeded", "code": "rate_limit"},
		})
	}))
	defer server.Close()

	service := tts.NewOpenAI("test-api-key", tts.WithOpenAIBaseURL(server.URL))
	_, err := service.Synthesize(context.Background(), "hello", tts.SynthesisConfig{})

	var synthErr *tts.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("err type = %T, want *SynthesisError", err)
	}
	if !synthErr.Retryable {
		t.Error("rate limit error should be retryable")
	}
	if !errors.Is(err, tts.ErrRateLimited) {
		t.Error("err should match ErrRateLimited")
	}
}

func TestOpenAISynthesizeCancelledContext(t *testing.T) {
	pcm := make([]byte, 24000*2) // 1s, many chunks

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pcm)
	}))
	defer server.Close()

	service := tts.NewOpenAI("test-api-key", tts.WithOpenAIBaseURL(server.URL))
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := service.Synthesize(ctx, "a long reply", tts.SynthesisConfig{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	<-ch
	cancel()

	// The channel closes without delivering everything.
	deadline := time.After(2 * time.Second)
	count := 1
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if count >= 50 {
					t.Errorf("received %d chunks after cancel, want early stop", count)
				}
				return
			}
			count++
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestSilenceService(t *testing.T) {
	service := tts.NewSilence()
	ch, err := service.Synthesize(context.Background(), "three word reply", tts.SynthesisConfig{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	chunks := collect(t, ch)
	if len(chunks) == 0 {
		t.Fatal("no chunks delivered")
	}
	var total int
	for _, chunk := range chunks {
		for _, b := range chunk.Data {
			if b != 0 {
				t.Fatal("silence chunk contains non-zero samples")
			}
		}
		total += len(chunk.Data)
	}
	// 3 words at 300ms each at 16kHz.
	want := 16000 * 2 * 900 / 1000
	if total != want {
		t.Errorf("total bytes = %d, want %d", total, want)
	}
}
