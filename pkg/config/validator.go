package config

import "fmt"

// ValidationError is a single field-level configuration problem, matching
// the teacher's pkg/uci/validator.go shape minus the UCI-specific section
// name (this config has no section/option split).
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

// ValidationResult collects every violation found, rather than failing on
// the first one, per the teacher's validator pattern.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

func (r ValidationResult) Error() string {
	if len(r.Errors) == 0 {
		return "no validation errors"
	}
	msg := fmt.Sprintf("%d configuration error(s)", len(r.Errors))
	for _, e := range r.Errors {
		msg += fmt.Sprintf("; %s=%q: %s", e.Field, e.Value, e.Message)
	}
	return msg
}

func (r *ValidationResult) fail(field, value, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
}

// Validate checks every field of cfg, collecting all violations.
func Validate(cfg Config) ValidationResult {
	result := ValidationResult{Valid: true}

	if cfg.ResamplingPeriodMS <= 0 {
		result.fail("resampling_period_ms", fmt.Sprint(cfg.ResamplingPeriodMS), "must be positive")
	}
	if cfg.MaxDataAgeInPeriods < 1.0 {
		result.fail("max_data_age_in_periods", fmt.Sprint(cfg.MaxDataAgeInPeriods), "must be >= 1.0")
	}
	if cfg.BufferLenInit <= 0 {
		result.fail("buffer_len_init", fmt.Sprint(cfg.BufferLenInit), "must be positive")
	}
	if cfg.BufferLenWarn < cfg.BufferLenInit {
		result.fail("buffer_len_warn", fmt.Sprint(cfg.BufferLenWarn), "must be >= buffer_len_init")
	}
	if cfg.BufferLenMax < cfg.BufferLenWarn {
		result.fail("buffer_len_max", fmt.Sprint(cfg.BufferLenMax), "must be >= buffer_len_warn")
	}
	switch cfg.ReductionFn {
	case "mean", "linear_extrapolation":
	default:
		result.fail("reduction_fn", cfg.ReductionFn, `must be "mean" or "linear_extrapolation"`)
	}

	if cfg.MicrogridTarget == "" {
		result.fail("microgrid_target", cfg.MicrogridTarget, "must not be empty")
	}
	if cfg.MicrogridDialTimeMS <= 0 {
		result.fail("microgrid_dial_timeout_ms", fmt.Sprint(cfg.MicrogridDialTimeMS), "must be positive")
	}

	if cfg.MQTTEnabled && cfg.MQTTBroker == "" {
		result.fail("mqtt_broker", cfg.MQTTBroker, "must be set when mqtt_enabled is true")
	}
	if cfg.MQTTQoS < 0 || cfg.MQTTQoS > 2 {
		result.fail("mqtt_qos", fmt.Sprint(cfg.MQTTQoS), "must be 0, 1, or 2")
	}

	if cfg.RetryBaseDelayMS <= 0 {
		result.fail("retry_base_delay_ms", fmt.Sprint(cfg.RetryBaseDelayMS), "must be positive")
	}
	if cfg.RetryMaxDelayMS < cfg.RetryBaseDelayMS {
		result.fail("retry_max_delay_ms", fmt.Sprint(cfg.RetryMaxDelayMS), "must be >= retry_base_delay_ms")
	}
	if cfg.RetryMultiplier < 1.0 {
		result.fail("retry_multiplier", fmt.Sprint(cfg.RetryMultiplier), "must be >= 1.0")
	}
	if cfg.RetryMaxAttempts < 1 {
		result.fail("retry_max_attempts", fmt.Sprint(cfg.RetryMaxAttempts), "must be >= 1")
	}
	if cfg.RateLimitPerSec <= 0 {
		result.fail("rate_limit_per_sec", fmt.Sprint(cfg.RateLimitPerSec), "must be positive")
	}
	if cfg.RateLimitBurst < 1 {
		result.fail("rate_limit_burst", fmt.Sprint(cfg.RateLimitBurst), "must be >= 1")
	}

	if cfg.MetricsListener && (cfg.MetricsPort <= 0 || cfg.MetricsPort > 65535) {
		result.fail("metrics_port", fmt.Sprint(cfg.MetricsPort), "must be a valid port when metrics_listener is true")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "trace", "":
	default:
		result.fail("log_level", cfg.LogLevel, "must be one of debug|info|warn|error|trace")
	}

	return result
}
