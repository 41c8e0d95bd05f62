package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("expected max_iterations 10, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Cache.QueryTTL != 5*time.Minute {
		t.Errorf("expected query ttl 5m, got %v", cfg.Cache.QueryTTL)
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache enabled by default")
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
agent:
  max_iterations: 5
  tool_timeout: 2s
cache:
  mode: "tiered"
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("expected max_iterations 5, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.ToolTimeout != 2*time.Second {
		t.Errorf("expected tool timeout 2s, got %v", cfg.Agent.ToolTimeout)
	}
	if cfg.Cache.Mode != "tiered" {
		t.Errorf("expected tiered mode, got %s", cfg.Cache.Mode)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("FINCH_PORT", "7070")
	t.Setenv("FINCH_AGENT_MAX_ITERATIONS", "3")
	t.Setenv("FINCH_CACHE_ENABLED", "false")
	t.Setenv("FINCH_ORACLE_MODEL", "openai/gpt-4o")
	t.Setenv("FINCH_BREAKER_TIMEOUT", "1m")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Agent.MaxIterations != 3 {
		t.Errorf("expected max_iterations 3, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Cache.Enabled {
		t.Error("expected cache disabled via env")
	}
	if cfg.Oracle.Model != "openai/gpt-4o" {
		t.Errorf("expected model override, got %s", cfg.Oracle.Model)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(_ *Config) {}, false},
		{"empty port", func(c *Config) { c.Server.Port = "" }, true},
		{"empty oracle url", func(c *Config) { c.Oracle.URL = "" }, true},
		{"zero max_iterations", func(c *Config) { c.Agent.MaxIterations = 0 }, true},
		{"bad cache mode", func(c *Config) { c.Cache.Mode = "redis" }, true},
		{"tiered without nats", func(c *Config) { c.Cache.Mode = "tiered"; c.NATS.URL = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
