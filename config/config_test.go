package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/media", cfg.Server.StreamPath)
	assert.Equal(t, "whisper", cfg.ASR.Provider)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 3*time.Second, cfg.Calls.ForcedResponseAfter.Std())
	assert.Equal(t, 5*time.Second, cfg.Calls.ReengageAfter.Std())
	assert.True(t, cfg.Audio.FilterBackchannels)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
llm:
  model: mistral
calls:
  max_concurrent: 3
  reengage_after: 8s
store:
  backend: redis
  redis:
    addr: redis.internal:6379
    ttl: 1h
audio:
  vad_aggressiveness: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Calls.MaxConcurrent)
	assert.Equal(t, 8*time.Second, cfg.Calls.ReengageAfter.Std())
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL.Std())
	assert.Equal(t, 2, cfg.Audio.VADAggressiveness)
	// Untouched sections keep their defaults.
	assert.Equal(t, "/media", cfg.Server.StreamPath)
	assert.Equal(t, "whisper", cfg.ASR.Provider)
	assert.Equal(t, path, cfg.ConfigPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := writeConfig(t, "calls:\n  reengage_after: soon\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestEnvOverridesAPIKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.ASR.APIKey)
	assert.Equal(t, "sk-test", cfg.TTS.APIKey)
}

func TestEnvDoesNotClobberExplicitKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	path := writeConfig(t, "asr:\n  api_key: sk-file\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.ASR.APIKey)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: "server.addr",
		},
		{
			name:    "vad out of range",
			mutate:  func(c *Config) { c.Audio.VADAggressiveness = 4 },
			wantErr: "vad_aggressiveness",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "etcd" },
			wantErr: "store.backend",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Store.Backend = StoreRedis
				c.Store.Redis.Addr = ""
			},
			wantErr: "store.redis.addr",
		},
		{
			name:    "telemetry without endpoint",
			mutate:  func(c *Config) { c.Telemetry.Enabled = true },
			wantErr: "telemetry.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
