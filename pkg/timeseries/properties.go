package timeseries

import "time"

// SourceProperties tracks what a SourceTracker has learned about the input
// stream it wraps. SamplingPeriod is set at most once and frozen afterward.
type SourceProperties struct {
	SamplingStart   *time.Time
	ReceivedSamples int64
	SamplingPeriod  *time.Duration
}

// Copy returns a value copy, used by the public Resampler facade so callers
// cannot mutate tracker-internal state through the returned properties.
func (p SourceProperties) Copy() SourceProperties {
	cp := p
	if p.SamplingStart != nil {
		t := *p.SamplingStart
		cp.SamplingStart = &t
	}
	if p.SamplingPeriod != nil {
		d := *p.SamplingPeriod
		cp.SamplingPeriod = &d
	}
	return cp
}
