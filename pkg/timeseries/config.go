package timeseries

import "time"

// ReductionFunc turns the relevant window of samples into a single output
// value. samples is non-empty and ordered by timestamp; props reflects the
// SourceTracker's current view of the input stream.
type ReductionFunc func(samples []Sample, cfg *ResamplerConfig, props SourceProperties) float64

// ResamplerConfig is immutable after construction; NewResamplerConfig
// validates every invariant eagerly and returns a *ConfigError on the first
// one violated.
type ResamplerConfig struct {
	ResamplingPeriod    time.Duration
	MaxDataAgeInPeriods float64
	ReductionFn         ReductionFunc
	InitialBufferLen    int
	WarnBufferLen       int
	MaxBufferLen        int
	AlignTo             *time.Time
}

// ResamplerConfigOption mutates a ResamplerConfig before validation.
type ResamplerConfigOption func(*ResamplerConfig)

// WithReductionFn overrides the default mean reduction.
func WithReductionFn(fn ReductionFunc) ResamplerConfigOption {
	return func(c *ResamplerConfig) { c.ReductionFn = fn }
}

// WithBufferLens overrides the initial/warn/max buffer length defaults.
func WithBufferLens(initial, warn, max int) ResamplerConfigOption {
	return func(c *ResamplerConfig) {
		c.InitialBufferLen = initial
		c.WarnBufferLen = warn
		c.MaxBufferLen = max
	}
}

// WithAlignTo anchors output timestamps to a fixed instant rather than
// construction time.
func WithAlignTo(t time.Time) ResamplerConfigOption {
	return func(c *ResamplerConfig) { c.AlignTo = &t }
}

// NewResamplerConfig constructs and validates a ResamplerConfig. period
// must be strictly positive and maxDataAgeInPeriods at least 1.0.
func NewResamplerConfig(period time.Duration, maxDataAgeInPeriods float64, opts ...ResamplerConfigOption) (*ResamplerConfig, error) {
	cfg := &ResamplerConfig{
		ResamplingPeriod:    period,
		MaxDataAgeInPeriods: maxDataAgeInPeriods,
		ReductionFn:         Mean,
		InitialBufferLen:    DefaultBufferLenInit,
		WarnBufferLen:       DefaultBufferLenWarn,
		MaxBufferLen:        DefaultBufferLenMax,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ResamplerConfig) validate() error {
	if c.ResamplingPeriod <= 0 {
		return configErr("resampling_period", "must be greater than zero")
	}
	if c.MaxDataAgeInPeriods < 1.0 {
		return configErr("max_data_age_in_periods", "must be at least 1.0")
	}
	if c.InitialBufferLen < 1 {
		return configErr("initial_buffer_len", "must be at least 1")
	}
	if c.WarnBufferLen < 1 {
		return configErr("warn_buffer_len", "must be at least 1")
	}
	if c.MaxBufferLen <= c.WarnBufferLen {
		return configErr("max_buffer_len", "must be greater than warn_buffer_len")
	}
	if c.InitialBufferLen > c.MaxBufferLen {
		return configErr("initial_buffer_len", "must not exceed max_buffer_len")
	}
	if c.AlignTo != nil && c.AlignTo.Location() != time.UTC {
		return configErr("align_to", "must be an explicit UTC instant")
	}
	if c.ReductionFn == nil {
		return configErr("reduction_fn", "must not be nil")
	}
	return nil
}
