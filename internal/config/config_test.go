package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen:
  address: "127.0.0.1"
  port: 9090
model:
  api_key: sk-test
  name: gpt-4.1-mini
  temperature: 0.3
agent:
  max_rounds: 5
places:
  api_key: places-key
events:
  cache_ttl_sec: 120
conversations:
  backend: sqlite
  idle_ttl_sec: 600
  max_threads: 50
data_dir: /var/lib/wayfarer
log_level: debug
log_format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Address != "127.0.0.1" || cfg.Listen.Port != 9090 {
		t.Errorf("listen = %+v", cfg.Listen)
	}
	if cfg.Model.APIKey != "sk-test" {
		t.Errorf("model.api_key = %q", cfg.Model.APIKey)
	}
	if cfg.Model.Name != "gpt-4.1-mini" {
		t.Errorf("model.name = %q", cfg.Model.Name)
	}
	if cfg.Model.Temperature != 0.3 {
		t.Errorf("model.temperature = %v", cfg.Model.Temperature)
	}
	if cfg.Agent.MaxRounds != 5 {
		t.Errorf("agent.max_rounds = %d", cfg.Agent.MaxRounds)
	}
	if cfg.Places.APIKey != "places-key" {
		t.Errorf("places.api_key = %q", cfg.Places.APIKey)
	}
	if got := cfg.Events.CacheTTL(); got != 2*time.Minute {
		t.Errorf("events cache TTL = %v, want 2m", got)
	}
	if cfg.Conversations.Backend != "sqlite" {
		t.Errorf("conversations.backend = %q", cfg.Conversations.Backend)
	}
	if got := cfg.Conversations.IdleTTL(); got != 10*time.Minute {
		t.Errorf("conversations idle TTL = %v, want 10m", got)
	}
	if cfg.Conversations.MaxThreads != 50 {
		t.Errorf("conversations.max_threads = %d", cfg.Conversations.MaxThreads)
	}
	if cfg.DataDir != "/var/lib/wayfarer" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("WAYFARER_TEST_KEY", "from-env")

	path := writeConfig(t, `
model:
  api_key: ${WAYFARER_TEST_KEY}
  name: gpt-4.1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.APIKey != "from-env" {
		t.Errorf("model.api_key = %q, want env expansion", cfg.Model.APIKey)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  api_key: sk-test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Port != 8080 {
		t.Errorf("listen.port = %d, want default 8080", cfg.Listen.Port)
	}
	if cfg.Model.Name != "gpt-4.1" {
		t.Errorf("model.name = %q, want default", cfg.Model.Name)
	}
	if cfg.Agent.MaxRounds != 8 {
		t.Errorf("agent.max_rounds = %d, want default 8", cfg.Agent.MaxRounds)
	}
	if got := cfg.Events.CacheTTL(); got != time.Hour {
		t.Errorf("events cache TTL = %v, want 1h default", got)
	}
	if cfg.Conversations.Backend != "memory" {
		t.Errorf("conversations.backend = %q, want memory", cfg.Conversations.Backend)
	}
	if cfg.DataDir != "data" {
		t.Errorf("data_dir = %q, want data", cfg.DataDir)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "model: [not: a: mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestFindConfigExplicit(t *testing.T) {
	path := writeConfig(t, "model:\n  api_key: x\n")

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig: %v", err)
	}
	if got != path {
		t.Errorf("FindConfig = %q, want %q", got, path)
	}
}

func TestFindConfigExplicitMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := FindConfig(missing)
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
	if !strings.Contains(err.Error(), missing) {
		t.Errorf("error %q should name the missing path", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Model.APIKey = "sk-test"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing api key", func(c *Config) { c.Model.APIKey = "" }, "model.api_key"},
		{"missing model name", func(c *Config) { c.Model.Name = "" }, "model.name"},
		{"zero max rounds", func(c *Config) { c.Agent.MaxRounds = 0 }, "max_rounds"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"bad backend", func(c *Config) { c.Conversations.Backend = "redis" }, "backend"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"  debug  ", slog.LevelDebug},
	}
	for _, tc := range cases {
		got, err := ParseLogLevel(tc.in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewLogger(t *testing.T) {
	var buf strings.Builder
	logger := NewLogger(&buf, slog.LevelInfo, "json")
	logger.Info("hello", "k", "v")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("json output missing message: %q", out)
	}

	buf.Reset()
	logger = NewLogger(&buf, slog.LevelWarn, "text")
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info record should be filtered at warn level: %q", buf.String())
	}
}
