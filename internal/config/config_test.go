package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.SQLitePath != "carcert.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if !cfg.Push.Enabled || cfg.Push.TokenTimeout != 10*time.Second {
		t.Errorf("push = %+v", cfg.Push)
	}
	if cfg.Demo.Enabled {
		t.Error("demo enabled by default")
	}
	if cfg.RateLimit.TrustForwarded {
		t.Error("X-Forwarded-For trusted by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carcert.yaml")
	yaml := `port: 9090
log_level: debug
store:
  backend: redis
  redis_addr: cache:6379
  redis_db: 2
push:
  token_timeout: 3s
demo:
  enabled: true
  interval: 250ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 || cfg.LogLevel != "debug" {
		t.Errorf("port/log = %d/%s", cfg.Port, cfg.LogLevel)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.RedisAddr != "cache:6379" || cfg.Store.RedisDB != 2 {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Store.RedisPrefix != "carcert" {
		t.Errorf("unset key lost its default: prefix = %q", cfg.Store.RedisPrefix)
	}
	if cfg.Push.TokenTimeout != 3*time.Second {
		t.Errorf("token timeout = %v", cfg.Push.TokenTimeout)
	}
	if !cfg.Demo.Enabled || cfg.Demo.Interval != 250*time.Millisecond {
		t.Errorf("demo = %+v", cfg.Demo)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CARCERT_PORT", "7000")
	t.Setenv("CARCERT_STORE_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("CARCERT_PUSH_ENABLED", "false")
	t.Setenv("CARCERT_RATE_LIMIT_TRUST_FORWARDED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7000 {
		t.Errorf("port = %d, want 7000", cfg.Port)
	}
	if cfg.Store.SQLitePath != "/tmp/x.db" {
		t.Errorf("sqlite path = %q", cfg.Store.SQLitePath)
	}
	if cfg.Push.Enabled {
		t.Error("push still enabled")
	}
	if !cfg.RateLimit.TrustForwarded {
		t.Error("rate_limit.trust_forwarded not overridden")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "port"},
		{"bad backend", func(c *Config) { c.Store.Backend = "mongo" }, "store.backend"},
		{"bad keyring", func(c *Config) { c.Keyring.Backend = "vault" }, "keyring.backend"},
		{"negative timeout", func(c *Config) { c.Push.TokenTimeout = -time.Second }, "token_timeout"},
		{"demo without interval", func(c *Config) { c.Demo.Enabled = true; c.Demo.Interval = 0 }, "demo.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
