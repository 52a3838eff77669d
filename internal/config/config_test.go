package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 3001 {
		t.Errorf("port = %d, want 3001", cfg.Port)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("ttl = %s, want 24h", cfg.SessionTTL)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("sweep interval = %s, want 1m", cfg.SweepInterval)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("expected 2 default origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.AllowsAnyOrigin() {
		t.Error("defaults should not allow any origin")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,*")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.example" {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
	if !cfg.AllowsAnyOrigin() {
		t.Error("expected * to allow any origin")
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("ttl = %s, want 2h", cfg.SessionTTL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "PORT", "70000"},
		{"port not a number", "PORT", "abc"},
		{"zero ttl", "SESSION_TTL", "0s"},
		{"negative sweep", "SWEEP_INTERVAL", "-1s"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
		{"no origins", "ALLOWED_ORIGINS", " , "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
