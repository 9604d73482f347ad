package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
environment: test
server:
  port: 8080
backend:
  base_url: http://backend:9000
  api_key: secret
  timeout: 5s
stream:
  url: ws://backend:9000/events
  reconnect_delay: 2s
sync:
  fast_interval: 2s
  standard_interval: 10s
  slow_interval: 60s
  fetch_timeout: 5s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.Sync.FastInterval != 2*time.Second {
		t.Fatalf("unexpected fast interval %v", cfg.Sync.FastInterval)
	}
	// defaults
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stdout" {
		t.Fatalf("logging defaults not applied: %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsUnorderedIntervals(t *testing.T) {
	bad := `
environment: test
backend:
  base_url: http://backend:9000
  api_key: secret
stream:
  url: ws://backend:9000/events
sync:
  fast_interval: 60s
  standard_interval: 10s
  slow_interval: 2s
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("expected interval ordering error")
	}
}

func TestValidateRequiresBackend(t *testing.T) {
	bad := `
environment: test
stream:
  url: ws://backend:9000/events
sync:
  fast_interval: 2s
  standard_interval: 10s
  slow_interval: 60s
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("expected missing backend error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://override:9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://override:9100" {
		t.Fatalf("base url override not applied: %s", cfg.Backend.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level override not applied: %s", cfg.Logging.Level)
	}
	if !cfg.Cache.Redis.Enabled || cfg.Cache.Redis.Addr != "redis:6379" {
		t.Fatalf("redis override not applied: %+v", cfg.Cache.Redis)
	}
}
