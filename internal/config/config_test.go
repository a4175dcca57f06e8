package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statesync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
instance:
  id: test-1
server:
  stream_url: wss://example.com/ws
  rest_url: https://example.com/api
`

func TestLoadAndValidate_Minimal(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if got := cfg.Channels; len(got) != 1 || got[0] != DefaultChannel {
		t.Errorf("channels = %v, want [%s]", got, DefaultChannel)
	}
	if cfg.Cache.Backend != "badger" {
		t.Errorf("cache.backend = %q, want badger", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL != DefaultCacheTTL {
		t.Errorf("cache.ttl = %v, want %v", cfg.Cache.TTL, DefaultCacheTTL)
	}
	if cfg.Connection.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("connection.max_attempts = %d, want %d", cfg.Connection.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Fallback.MinInterval != time.Second || cfg.Fallback.MaxInterval != 4*time.Second {
		t.Errorf("fallback interval = [%v, %v], want [1s, 4s]", cfg.Fallback.MinInterval, cfg.Fallback.MaxInterval)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_STREAM_URL", "wss://env.example.com/ws")

	path := writeConfig(t, `
instance:
  id: test-1
server:
  stream_url: ${TEST_STREAM_URL}
  rest_url: https://example.com/api
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.StreamURL != "wss://env.example.com/ws" {
		t.Errorf("stream_url = %q, env var not expanded", cfg.Server.StreamURL)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing instance id", func(c *Config) { c.Instance.ID = "" }},
		{"missing stream url", func(c *Config) { c.Server.StreamURL = "" }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "redis" }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"zero max attempts", func(c *Config) { c.Connection.MaxAttempts = 0 }},
		{"base above ceiling", func(c *Config) {
			c.Connection.ReconnectBaseDelay = time.Minute
			c.Connection.ReconnectMaxDelay = time.Second
		}},
		{"inverted fallback interval", func(c *Config) {
			c.Fallback.MinInterval = 5 * time.Second
			c.Fallback.MaxInterval = time.Second
		}},
		{"journal without db", func(c *Config) { c.Journal.Enabled = true }},
		{"metrics port out of range", func(c *Config) { c.Metrics.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWithDefaults(writeConfig(t, minimalYAML))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
