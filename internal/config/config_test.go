package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.HTTP.Port)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Fatalf("expected default model, got %q", cfg.LLM.Model)
	}
	if cfg.Output.URLPrefix != "/generated" {
		t.Fatalf("expected default url prefix, got %q", cfg.Output.URLPrefix)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aether.yaml")
	data := []byte(`
http:
  port: 9000
llm:
  mode: mock
tts:
  mode: mock
output:
  root: /tmp/lectures
  cover: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 9000 || cfg.LLM.Mode != "mock" || cfg.TTS.Mode != "mock" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !cfg.Output.Cover || cfg.Output.Root != "/tmp/lectures" {
		t.Fatalf("expected output overrides, got %+v", cfg.Output)
	}
	if cfg.Lecture.DefaultVoice != "af_sky" {
		t.Fatalf("expected defaults kept for unset keys")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini-secret")
	t.Setenv("AETHER_LLM_MODE", "ollama")
	t.Setenv("AETHER_LLM_REQUESTS_PER_MINUTE", "3")
	t.Setenv("AETHER_BUS_ENABLED", "true")
	t.Setenv("AETHER_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("AETHER_TTS_MODEL_DIR", "/opt/kokoro")
	t.Setenv("AETHER_JOURNAL_RETENTION_MODE", "persistent")
	t.Setenv("AETHER_JOURNAL_MAX_REQUESTS", "12")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "gemini-secret" {
		t.Fatalf("expected api key from GEMINI_API_KEY")
	}
	if cfg.LLM.Mode != "ollama" || cfg.LLM.RequestsPerMinute != 3 {
		t.Fatalf("expected llm overrides, got %+v", cfg.LLM)
	}
	if !cfg.Bus.Enabled || len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected bus overrides, got %+v", cfg.Bus)
	}
	if cfg.TTS.ModelDir != "/opt/kokoro" {
		t.Fatalf("expected tts model dir override")
	}
	if cfg.Journal.RetentionMode != "persistent" || cfg.Journal.MaxRequests != 12 {
		t.Fatalf("expected journal overrides, got %+v", cfg.Journal)
	}
}

func TestAPIKeyPrecedence(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-gemini")
	t.Setenv("AETHER_LLM_API_KEY", "from-aether")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "from-aether" {
		t.Fatalf("expected AETHER_LLM_API_KEY to win, got %q", cfg.LLM.APIKey)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"bad llm mode", func(c *Config) { c.LLM.Mode = "gpt" }},
		{"exec without command", func(c *Config) { c.LLM.Mode = "exec" }},
		{"bad tts mode", func(c *Config) { c.TTS.Mode = "kokoro" }},
		{"bad retention", func(c *Config) { c.Journal.RetentionMode = "forever" }},
		{"otlp without endpoint", func(c *Config) { c.Telemetry.TraceExporter = "otlp" }},
		{"relative url prefix", func(c *Config) { c.Output.URLPrefix = "generated" }},
		{"empty output root", func(c *Config) { c.Output.Root = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateAllowsDisabledTTS(t *testing.T) {
	cfg := Default()
	cfg.TTS.Enabled = false
	cfg.TTS.Mode = "anything"
	if err := validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
