// Package config loads the server configuration from a YAML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "3s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	ASR       ASRConfig       `yaml:"asr"`
	LLM       LLMConfig       `yaml:"llm"`
	TTS       TTSConfig       `yaml:"tts"`
	Audio     AudioConfig     `yaml:"audio"`
	Calls     CallsConfig     `yaml:"calls"`
	Store     StoreConfig     `yaml:"store"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// ConfigPath records where the config was loaded from.
	ConfigPath string `yaml:"-"`
}

// ServerConfig configures the websocket listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	StreamPath      string   `yaml:"stream_path"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// ASRConfig configures the transcription collaborator.
type ASRConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// LLMConfig configures the response generator.
type LLMConfig struct {
	Provider     string  `yaml:"provider"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// TTSConfig configures the synthesis collaborator.
type TTSConfig struct {
	Provider string  `yaml:"provider"`
	BaseURL  string  `yaml:"base_url"`
	APIKey   string  `yaml:"api_key"`
	Model    string  `yaml:"model"`
	Voice    string  `yaml:"voice"`
	Speed    float64 `yaml:"speed"`
}

// AudioConfig configures the conditioning chain and voice gate.
type AudioConfig struct {
	EnableEchoCancellation bool `yaml:"enable_echo_cancellation"`
	EnableNoiseReduction   bool `yaml:"enable_noise_reduction"`
	VADAggressiveness      int  `yaml:"vad_aggressiveness"`
	FilterBackchannels     bool `yaml:"filter_backchannels"`
}

// CallsConfig configures per-call behavior.
type CallsConfig struct {
	MaxConcurrent       int      `yaml:"max_concurrent"`
	ForcedResponseAfter Duration `yaml:"forced_response_after"`
	ReengageAfter       Duration `yaml:"reengage_after"`
}

// StoreConfig selects and configures call state persistence.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis state store.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Backend names accepted by StoreConfig.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Default returns a Config with every field at its default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			StreamPath:      "/media",
			ShutdownTimeout: Duration(15 * time.Second),
		},
		ASR: ASRConfig{
			Provider: "whisper",
			Model:    "whisper-1",
			Language: "en",
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.2",
			Temperature: 0.7,
			MaxTokens:   150,
		},
		TTS: TTSConfig{
			Provider: "openai",
			Model:    "tts-1",
			Voice:    "alloy",
			Speed:    1.0,
		},
		Audio: AudioConfig{
			EnableEchoCancellation: true,
			EnableNoiseReduction:   true,
			VADAggressiveness:      3,
			FilterBackchannels:     true,
		},
		Calls: CallsConfig{
			MaxConcurrent:       10,
			ForcedResponseAfter: Duration(3 * time.Second),
			ReengageAfter:       Duration(5 * time.Second),
		},
		Store: StoreConfig{
			Backend: StoreMemory,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				TTL:  Duration(24 * time.Hour),
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "callbridge",
		},
	}
}

// Load reads a YAML config file over the defaults and applies
// environment overrides. An empty path returns defaults plus
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.ConfigPath = path
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays secrets and addresses that are conventionally
// supplied through the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.ASR.APIKey == "" {
			c.ASR.APIKey = v
		}
		if c.TTS.APIKey == "" {
			c.TTS.APIKey = v
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" && c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = v
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.StreamPath == "" {
		return fmt.Errorf("server.stream_path must not be empty")
	}
	if c.Audio.VADAggressiveness < 0 || c.Audio.VADAggressiveness > 3 {
		return fmt.Errorf("audio.vad_aggressiveness must be 0 to 3, got %d", c.Audio.VADAggressiveness)
	}
	if c.Calls.MaxConcurrent < 0 {
		return fmt.Errorf("calls.max_concurrent must not be negative")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr must not be empty with the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", StoreMemory, StoreRedis, c.Store.Backend)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint must be set when telemetry is enabled")
	}
	return nil
}
