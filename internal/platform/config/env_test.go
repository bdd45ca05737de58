package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	BaseURL string        `env:"TCRT_TEST_BASE_URL" envDefault:"http://localhost:9999/api"`
	Timeout time.Duration `env:"TCRT_TEST_TIMEOUT" envDefault:"10s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.BaseURL != "http://localhost:9999/api" {
		t.Fatalf("expected default base url, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("expected default timeout 10s, got %s", cfg.Timeout)
	}
}

func TestParseEnvReadsProcessEnvironment(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("TCRT_TEST_BASE_URL", "http://tcrt.internal/api")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.BaseURL != "http://tcrt.internal/api" {
		t.Fatalf("expected env base url, got %q", cfg.BaseURL)
	}
}

func TestParseEnvFromIgnoresProcessEnvironment(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("TCRT_TEST_BASE_URL", "http://process/api")

	if err := ParseEnvFrom(&cfg, map[string]string{"TCRT_TEST_TIMEOUT": "3s"}); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.BaseURL != "http://localhost:9999/api" {
		t.Fatalf("expected default base url, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != 3*time.Second {
		t.Fatalf("expected timeout 3s, got %s", cfg.Timeout)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig

	err := ParseEnvFrom(&cfg, map[string]string{"TCRT_TEST_TIMEOUT": "soon"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
