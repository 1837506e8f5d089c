package asr_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AltairaLabs/CallBridge/asr"
)

func TestNewWhisper(t *testing.T) {
	service := asr.NewWhisper("test-api-key")
	if service == nil {
		t.Fatal("NewWhisper returned nil")
	}
	if service.Name() != "whisper" {
		t.Errorf("Name() = %q, want %q", service.Name(), "whisper")
	}
}

func TestWhisperTranscribeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Errorf("missing Authorization header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		if got := r.FormValue("model"); got != asr.ModelWhisper1 {
			t.Errorf("model field = %q, want %q", got, asr.ModelWhisper1)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "audio.wav" {
			t.Errorf("filename = %q, want audio.wav (PCM wrapped as WAV)", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "I need to check my order status"})
	}))
	defer server.Close()

	service := asr.NewWhisper("test-api-key", asr.WithWhisperBaseURL(server.URL))

	audio := make([]byte, 16000*2) // 1s of 16kHz silence
	text, err := service.Transcribe(context.Background(), audio, asr.DefaultTranscriptionConfig())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "I need to check my order status" {
		t.Errorf("Transcribe() = %q", text)
	}
}

func TestWhisperTranscribeEmptyAudio(t *testing.T) {
	service := asr.NewWhisper("test-api-key")
	_, err := service.Transcribe(context.Background(), nil, asr.TranscriptionConfig{})
	if !errors.Is(err, asr.ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestWhisperTranscribeRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "Rate limit exceeded",
				"type":    "rate_limit_error",
				"code":    "rate_limit",
			},
		})
	}))
	defer server.Close()

	service := asr.NewWhisper("test-api-key", asr.WithWhisperBaseURL(server.URL))

	_, err := service.Transcribe(context.Background(), make([]byte, 3200), asr.TranscriptionConfig{})
	if err == nil {
		t.Fatal("expected error")
	}
	var txErr *asr.TranscriptionError
	if !errors.As(err, &txErr) {
		t.Fatalf("err type = %T, want *TranscriptionError", err)
	}
	if !txErr.Retryable {
		t.Error("rate limit error should be retryable")
	}
	if !errors.Is(err, asr.ErrRateLimited) {
		t.Error("err should match ErrRateLimited")
	}
}

func TestWhisperTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	service := asr.NewWhisper("test-api-key", asr.WithWhisperBaseURL(server.URL))

	_, err := service.Transcribe(context.Background(), make([]byte, 3200), asr.TranscriptionConfig{})
	var txErr *asr.TranscriptionError
	if !errors.As(err, &txErr) {
		t.Fatalf("err type = %T, want *TranscriptionError", err)
	}
	if !txErr.Retryable {
		t.Error("5xx error should be retryable")
	}
}

func TestWrapPCMAsWAV(t *testing.T) {
	pcm := make([]byte, 320)
	wav := asr.WrapPCMAsWAV(pcm, 16000, 1, 16)

	if len(wav) != len(pcm)+44 {
		t.Fatalf("WAV size = %d, want %d", len(wav), len(pcm)+44)
	}
	if string(wav[0:4]) != "RIFF" {
		t.Errorf("missing RIFF header: %q", wav[0:4])
	}
	if string(wav[8:12]) != "WAVE" {
		t.Errorf("missing WAVE tag: %q", wav[8:12])
	}
	if string(wav[36:40]) != "data" {
		t.Errorf("missing data chunk: %q", wav[36:40])
	}
	// Sample rate at offset 24, little-endian.
	rate := uint32(wav[24]) | uint32(wav[25])<<8 | uint32(wav[26])<<16 | uint32(wav[27])<<24
	if rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
}

func TestDefaultTranscriptionConfig(t *testing.T) {
	config := asr.DefaultTranscriptionConfig()
	if config.Format != asr.FormatPCM {
		t.Errorf("Format = %q, want pcm", config.Format)
	}
	if config.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", config.SampleRate)
	}
	if config.Channels != 1 {
		t.Errorf("Channels = %d, want 1", config.Channels)
	}
}
