package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "no targets",
			mutate: func(cfg *Config) {
				cfg.Targets = nil
			},
			wantErr: "target",
		},
		{
			name: "zero sample",
			mutate: func(cfg *Config) {
				cfg.SampleSize = 0
			},
			wantErr: "sample size",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "zero discovery timeout",
			mutate: func(cfg *Config) {
				cfg.DiscoveryTimeout = 0
			},
			wantErr: "discovery timeout",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "csv without file",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "csv"
				cfg.OutputFile = ""
			},
			wantErr: "output file",
		},
		{
			name: "empty user agent",
			mutate: func(cfg *Config) {
				cfg.UserAgent = ""
			},
			wantErr: "user agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PROBE_TARGETS", "falabella-api, mercadolibre-public ,")
	t.Setenv("PROBE_TIMEOUT", "3s")
	t.Setenv("PROBE_SAMPLE", "7")
	t.Setenv("PROBE_FORMAT", "JSON")

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if len(cfg.Targets) != 2 || cfg.Targets[0] != "falabella-api" || cfg.Targets[1] != "mercadolibre-public" {
		t.Fatalf("targets = %v", cfg.Targets)
	}
	if cfg.Timeout != 3*time.Second {
		t.Fatalf("timeout = %v, want 3s", cfg.Timeout)
	}
	if cfg.SampleSize != 7 {
		t.Fatalf("sample = %d, want 7", cfg.SampleSize)
	}
	if cfg.OutputFormat != "json" {
		t.Fatalf("format = %q, want json", cfg.OutputFormat)
	}
}

func TestApplyEnvInvalidInt(t *testing.T) {
	t.Setenv("PROBE_SAMPLE", "many")
	if err := ApplyEnv(DefaultConfig()); err == nil || !strings.Contains(err.Error(), "PROBE_SAMPLE") {
		t.Fatalf("expected PROBE_SAMPLE error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "probe.env")
	if err := os.WriteFile(path, []byte("PROBE_DOTENV_CHECK=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PROBE_DOTENV_CHECK", "")
	os.Unsetenv("PROBE_DOTENV_CHECK")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, _ := EnvString("PROBE_DOTENV_CHECK"); got != "from-file" {
		t.Fatalf("PROBE_DOTENV_CHECK = %q, want from-file", got)
	}
}
