package config_test

import (
	"testing"

	"github.com/westonopentrain/capsule-match/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("Load().Port = %d, want 8080", cfg.Port)
	}
	if cfg.Version != "0.1.0" {
		t.Errorf("Load().Version = %q, want 0.1.0", cfg.Version)
	}
	if cfg.VectorDimension != 3072 {
		t.Errorf("Load().VectorDimension = %d, want 3072", cfg.VectorDimension)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Load().LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("Load().LogFormat = %q, want console", cfg.LogFormat)
	}
	if cfg.Telemetry.Enabled {
		t.Error("Load().Telemetry.Enabled = true, want false by default")
	}
	if cfg.OpenAI.CapsuleModel != "gpt-4o-mini" {
		t.Errorf("Load().OpenAI.CapsuleModel = %q, want gpt-4o-mini", cfg.OpenAI.CapsuleModel)
	}
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVICE_VERSION", "2.3.4")
	t.Setenv("VECTOR_DIMENSION", "1536")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("SERVICE_API_KEY", "super-secret")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("Load().Port = %d, want 9090", cfg.Port)
	}
	if cfg.Version != "2.3.4" {
		t.Errorf("Load().Version = %q, want 2.3.4", cfg.Version)
	}
	if cfg.VectorDimension != 1536 {
		t.Errorf("Load().VectorDimension = %d, want 1536", cfg.VectorDimension)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("Load().Telemetry.Enabled = false, want true after OTEL_ENABLED=true")
	}
	if cfg.ServiceAPIKey != "super-secret" {
		t.Errorf("Load().ServiceAPIKey = %q, want super-secret", cfg.ServiceAPIKey)
	}
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	cfg := config.Load()
	if cfg.Port != 8080 {
		t.Errorf("Load().Port = %d with invalid PORT env, want fallback 8080", cfg.Port)
	}
}

func TestLoad_InvalidBoolFallsBackToDefault(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "not-a-bool")
	cfg := config.Load()
	if cfg.Telemetry.Enabled {
		t.Error("Load().Telemetry.Enabled = true with invalid OTEL_ENABLED env, want fallback false")
	}
}
