// Package timeseries implements the resampling data model: samples, ring
// buffers, per-source tracking, and the reduction core that turns a
// relevance window of samples into a single resampled output.
package timeseries

import (
	"math"
	"time"
)

// Sample is a single timestamped, optionally-present scalar reading.
// A nil Value represents an absent reading (the relevance window was empty,
// or the source reported no data for that instant). A NaN value can be
// carried, but SourceTracker.AddSample drops such samples, so they never
// reach the buffer.
type Sample struct {
	Timestamp time.Time
	Value     *float64
}

// NewSample builds a Sample carrying v.
func NewSample(ts time.Time, v float64) Sample {
	return Sample{Timestamp: ts, Value: &v}
}

// EmptySample builds a Sample with no value, e.g. the output of a resampling
// pass whose relevance window contained nothing.
func EmptySample(ts time.Time) Sample {
	return Sample{Timestamp: ts}
}

// HasValue reports whether the sample carries a present, non-NaN value.
func (s Sample) HasValue() bool {
	return s.Value != nil && !math.IsNaN(*s.Value)
}

// BaseValue returns the underlying float and true, or (0, false) if absent.
func (s Sample) BaseValue() (float64, bool) {
	if s.Value == nil {
		return 0, false
	}
	return *s.Value, true
}
