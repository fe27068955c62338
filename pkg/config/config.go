// Package config loads and validates the gridcored daemon's JSON
// configuration, following the teacher's pkg/uci/config.go convention of a
// flat, JSON-tagged struct with a dedicated validator rather than per-field
// parsing.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level gridcored configuration.
type Config struct {
	// Resampling
	ResamplingPeriodMS  int     `json:"resampling_period_ms"`
	MaxDataAgeInPeriods float64 `json:"max_data_age_in_periods"`
	BufferLenInit       int     `json:"buffer_len_init"`
	BufferLenMax        int     `json:"buffer_len_max"`
	BufferLenWarn       int     `json:"buffer_len_warn"`
	AlignToUTCMidnight  bool    `json:"align_to_utc_midnight"`
	ReductionFn         string  `json:"reduction_fn"` // "mean" | "linear_extrapolation"

	// Microgrid RPC endpoint
	MicrogridTarget     string `json:"microgrid_target"`
	MicrogridDialTimeMS int    `json:"microgrid_dial_timeout_ms"`

	// MQTT telemetry publishing
	MQTTEnabled  bool   `json:"mqtt_enabled"`
	MQTTBroker   string `json:"mqtt_broker"`
	MQTTClientID string `json:"mqtt_client_id"`
	MQTTQoS      int    `json:"mqtt_qos"`
	MQTTRetained bool   `json:"mqtt_retained"`

	// Retry strategy and rate limit for MQTT telemetry publishing
	RetryBaseDelayMS  int     `json:"retry_base_delay_ms"`
	RetryMaxDelayMS   int     `json:"retry_max_delay_ms"`
	RetryMultiplier   float64 `json:"retry_multiplier"`
	RetryMaxAttempts  int     `json:"retry_max_attempts"`
	RateLimitPerSec   float64 `json:"rate_limit_per_sec"`
	RateLimitBurst    int     `json:"rate_limit_burst"`

	// Audit log (bbolt)
	AuditDBPath string `json:"audit_db_path"`

	// Observability
	LogLevel        string `json:"log_level"`
	LogFile         string `json:"log_file"`
	MetricsListener bool   `json:"metrics_listener"`
	MetricsPort     int    `json:"metrics_port"`
}

// Default returns the built-in defaults, mirroring the original
// frequenz-sdk resampler's default buffer bounds.
func Default() Config {
	return Config{
		ResamplingPeriodMS:  1000,
		MaxDataAgeInPeriods: 3.0,
		BufferLenInit:       16,
		BufferLenMax:        1024,
		BufferLenWarn:       128,
		AlignToUTCMidnight:  true,
		ReductionFn:         "mean",

		MicrogridTarget:     "localhost:50051",
		MicrogridDialTimeMS: 5000,

		MQTTEnabled:  false,
		MQTTClientID: "gridcored",
		MQTTQoS:      1,
		MQTTRetained: false,

		RetryBaseDelayMS: 1000,
		RetryMaxDelayMS:  60000,
		RetryMultiplier:  2.0,
		RetryMaxAttempts: 5,
		RateLimitPerSec:  20,
		RateLimitBurst:   5,

		AuditDBPath: "/var/lib/gridcored/audit.db",

		LogLevel:        "info",
		MetricsListener: true,
		MetricsPort:     9101,
	}
}

// Load reads a JSON config file, overlaying it on Default(), and validates
// the result. A missing path is not an error: the defaults are returned
// as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	result := Validate(cfg)
	if !result.Valid {
		return Config{}, fmt.Errorf("config: %s: %w", path, result)
	}
	return cfg, nil
}

// ResamplingPeriod is ResamplingPeriodMS as a time.Duration.
func (c Config) ResamplingPeriod() time.Duration {
	return time.Duration(c.ResamplingPeriodMS) * time.Millisecond
}

// MicrogridDialTimeout is MicrogridDialTimeMS as a time.Duration.
func (c Config) MicrogridDialTimeout() time.Duration {
	return time.Duration(c.MicrogridDialTimeMS) * time.Millisecond
}
