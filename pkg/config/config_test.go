package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	result := Validate(Default())
	if !result.Valid {
		t.Fatalf("expected default config to be valid, got: %v", result.Errors)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Fatal("expected defaults when config file is absent")
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridcored.json")
	if err := os.WriteFile(path, []byte(`{"resampling_period_ms": 5000, "log_level": "debug"}`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ResamplingPeriodMS != 5000 {
		t.Fatalf("expected override to apply, got %d", cfg.ResamplingPeriodMS)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level override, got %s", cfg.LogLevel)
	}
	if cfg.MicrogridTarget != Default().MicrogridTarget {
		t.Fatalf("expected untouched field to retain default, got %s", cfg.MicrogridTarget)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridcored.json")
	if err := os.WriteFile(path, []byte(`{"resampling_period_ms": -1}`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative resampling period")
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.ResamplingPeriodMS = 0
	cfg.MaxDataAgeInPeriods = 0.5
	cfg.ReductionFn = "bogus"

	result := Validate(cfg)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 collected errors, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestValidateRequiresMQTTBrokerWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.MQTTEnabled = true
	cfg.MQTTBroker = ""

	result := Validate(cfg)
	if result.Valid {
		t.Fatal("expected invalid result when mqtt enabled without broker")
	}
}
