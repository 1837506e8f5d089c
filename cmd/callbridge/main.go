// Command callbridge runs the telephony voice-assistant bridge: a
// websocket media-stream endpoint in front of the per-call audio
// pipeline, plus metrics and health endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/CallBridge/asr"
	"github.com/AltairaLabs/CallBridge/config"
	"github.com/AltairaLabs/CallBridge/llm"
	"github.com/AltairaLabs/CallBridge/logger"
	promexp "github.com/AltairaLabs/CallBridge/metrics/prometheus"
	"github.com/AltairaLabs/CallBridge/statestore"
	"github.com/AltairaLabs/CallBridge/telemetry"
	"github.com/AltairaLabs/CallBridge/telephony"
	"github.com/AltairaLabs/CallBridge/tts"
	"github.com/AltairaLabs/CallBridge/version"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetVersionInfo())
		return
	}

	if err := run(*configPath); err != nil {
		logger.Error("callbridge failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	version.LogStartup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tracer trace.Tracer
	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
		telemetry.SetupPropagation()
		tracer = telemetry.Tracer(tp)
	}

	var exporter *promexp.Exporter
	if cfg.Metrics.Enabled {
		exporter = promexp.NewExporter(cfg.Metrics.Addr)
		if err := exporter.Start(); err != nil {
			return fmt.Errorf("starting metrics exporter: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := exporter.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics shutdown failed", "error", err)
			}
		}()
		logger.Info("metrics exporter listening", "addr", cfg.Metrics.Addr)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}

	deps, err := buildCollaborators(cfg)
	if err != nil {
		return err
	}
	deps.Store = store
	deps.Tracer = tracer

	warmUp(ctx, deps)

	gateway := telephony.NewGateway(telephony.GatewayConfig{
		MaxConcurrentCalls:     cfg.Calls.MaxConcurrent,
		EnableEchoCancellation: cfg.Audio.EnableEchoCancellation,
		EnableNoiseReduction:   cfg.Audio.EnableNoiseReduction,
		VADAggressiveness:      cfg.Audio.VADAggressiveness,
		FilterBackchannels:     cfg.Audio.FilterBackchannels,
		ForcedResponseAfter:    cfg.Calls.ForcedResponseAfter.Std(),
		ReengageAfter:          cfg.Calls.ReengageAfter.Std(),
	}, deps)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.StreamPath, gateway)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("media-stream server listening",
			"addr", cfg.Server.Addr, "path", cfg.Server.StreamPath)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown incomplete", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// warmUp probes the generation backend so a cold model loads before the
// first call instead of during it. Failures are logged, not fatal; the
// pipeline degrades per collaborator at call time.
func warmUp(ctx context.Context, deps telephony.Deps) {
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := deps.Generator.Generate(warmCtx, "Hello", nil); err != nil {
		logger.Warn("llm warm-up failed, first call may be slow", "error", err)
		return
	}
	logger.Info("llm warm-up complete", "provider", deps.Generator.Provider())
}

// buildStore selects the call state backend.
func buildStore(ctx context.Context, cfg *config.Config) (statestore.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return statestore.NewMemoryStore(), nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Store.Redis.Addr, err)
		}
		logger.Info("using redis state store", "addr", cfg.Store.Redis.Addr)
		return statestore.NewRedisStore(client, statestore.WithTTL(cfg.Store.Redis.TTL.Std())), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildCollaborators constructs the per-call ASR, LLM, and TTS services
// from configuration.
func buildCollaborators(cfg *config.Config) (telephony.Deps, error) {
	var deps telephony.Deps

	switch cfg.ASR.Provider {
	case "whisper":
		var opts []asr.WhisperOption
		if cfg.ASR.BaseURL != "" {
			opts = append(opts, asr.WithWhisperBaseURL(cfg.ASR.BaseURL))
		}
		if cfg.ASR.Model != "" {
			opts = append(opts, asr.WithWhisperModel(cfg.ASR.Model))
		}
		deps.ASR = asr.NewWhisper(cfg.ASR.APIKey, opts...)
	default:
		return deps, fmt.Errorf("unknown asr provider %q", cfg.ASR.Provider)
	}

	switch cfg.LLM.Provider {
	case "ollama":
		var opts []llm.OllamaOption
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, llm.WithOllamaBaseURL(cfg.LLM.BaseURL))
		}
		if cfg.LLM.Model != "" {
			opts = append(opts, llm.WithOllamaModel(cfg.LLM.Model))
		}
		service := llm.NewOllama(opts...)
		deps.Generator = llm.NewResponseGenerator(service, cfg.LLM.SystemPrompt,
			llm.WithTemperature(cfg.LLM.Temperature),
			llm.WithMaxTokens(cfg.LLM.MaxTokens))
	default:
		return deps, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	switch cfg.TTS.Provider {
	case "openai":
		var opts []tts.OpenAIOption
		if cfg.TTS.BaseURL != "" {
			opts = append(opts, tts.WithOpenAIBaseURL(cfg.TTS.BaseURL))
		}
		if cfg.TTS.Model != "" {
			opts = append(opts, tts.WithOpenAIModel(cfg.TTS.Model))
		}
		if cfg.TTS.Voice != "" {
			opts = append(opts, tts.WithOpenAIVoice(cfg.TTS.Voice))
		}
		if cfg.TTS.Speed != 0 {
			opts = append(opts, tts.WithOpenAISpeed(cfg.TTS.Speed))
		}
		deps.TTS = tts.NewOpenAI(cfg.TTS.APIKey, opts...)
	case "silence":
		deps.TTS = tts.NewSilence()
	default:
		return deps, fmt.Errorf("unknown tts provider %q", cfg.TTS.Provider)
	}

	return deps, nil
}
