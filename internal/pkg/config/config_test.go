package config_test

import (
	"strings"
	"testing"

	"github.com/lukagarbi/doorstep/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("doorstep-test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Overpass.RetryAttempts != 3 || cfg.Overpass.RetryDelayMs != 800 {
		t.Errorf("overpass retry = %d/%dms, want 3/800ms",
			cfg.Overpass.RetryAttempts, cfg.Overpass.RetryDelayMs)
	}
	if cfg.Geocoding.RetryAttempts != 2 || cfg.Geocoding.RetryDelayMs != 400 {
		t.Errorf("geocoding retry = %d/%dms, want 2/400ms",
			cfg.Geocoding.RetryAttempts, cfg.Geocoding.RetryDelayMs)
	}
	if cfg.Detection.AreaPerBuildingM2 != 400 {
		t.Errorf("area_per_building_m2 = %v, want 400", cfg.Detection.AreaPerBuildingM2)
	}
	if cfg.Detection.MinTarget != 3 || cfg.Detection.MaxTarget != 50 {
		t.Errorf("target clamp = [%d,%d], want [3,50]", cfg.Detection.MinTarget, cfg.Detection.MaxTarget)
	}
	if cfg.Detection.SampleAttempts != 30 {
		t.Errorf("sample_attempts = %d, want 30", cfg.Detection.SampleAttempts)
	}
	if cfg.Geocoding.APIKey != "" {
		t.Errorf("geocoding.api_key should default to empty, got %q", cfg.Geocoding.APIKey)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DOORSTEP_SERVER_PORT", "9999")
	t.Setenv("DOORSTEP_GEOCODING_API_KEY", "test-key")

	cfg, err := config.Load("doorstep-test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want env override 9999", cfg.Server.Port)
	}
	if cfg.Geocoding.APIKey != "test-key" {
		t.Errorf("geocoding.api_key = %q, want env override", cfg.Geocoding.APIKey)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors for zero config")
	}
	for _, want := range []string{"server.port", "database.host", "overpass.url", "detection.min_target"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error should mention %s, got:\n%v", want, err)
		}
	}
}

func TestValidate_TargetBounds(t *testing.T) {
	cfg, err := config.Load("doorstep-test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg.Detection.MinTarget = 10
	cfg.Detection.MaxTarget = 5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when max_target < min_target")
	}
}
