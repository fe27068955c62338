package timeseries

import (
	"testing"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
)

func mustConfig(t *testing.T, period time.Duration, maxAge float64, opts ...ResamplerConfigOption) *ResamplerConfig {
	t.Helper()
	cfg, err := NewResamplerConfig(period, maxAge, opts...)
	if err != nil {
		t.Fatalf("NewResamplerConfig: %v", err)
	}
	return cfg
}

func epoch(seconds int) time.Time {
	return time.Unix(int64(seconds), 0).UTC()
}

// TestMeanDownsampling mirrors spec scenario 1: resampling_period=2s,
// max_data_age_in_periods=2.0, input values 4,8,2,6,5,10 at t=1..6s.
func TestMeanDownsampling(t *testing.T) {
	cfg := mustConfig(t, 2*time.Second, 2.0)
	logger := logx.NewLogger("debug", "")
	tracker := NewSourceTracker("src", cfg, logger)
	core := NewResamplerCore("src", cfg, tracker, logger)

	values := []float64{4, 8, 2, 6, 5, 10}
	for i, v := range values {
		tracker.AddSample(NewSample(epoch(i+1), v))
	}

	first := core.Resample(epoch(2))
	v, ok := first.BaseValue()
	if !ok || v != 6 {
		t.Fatalf("first tick: got (%v, %v), want (6, true)", v, ok)
	}

	second := core.Resample(epoch(4))
	v, ok = second.BaseValue()
	if !ok || v != 5 {
		t.Fatalf("second tick: got (%v, %v), want (5, true)", v, ok)
	}
}

// TestPeriodInferenceAndResize mirrors spec scenario 2: 10Hz input against
// a 1s resampling period, expecting an inferred ~0.1s sampling period and a
// resize to ceil(1/0.1 * 2) = 20.
func TestPeriodInferenceAndResize(t *testing.T) {
	cfg := mustConfig(t, 1*time.Second, 2.0, WithBufferLens(16, 128, 1024))
	logger := logx.NewLogger("debug", "")
	tracker := NewSourceTracker("src", cfg, logger)

	start := epoch(0)
	var updated bool
	for i := 0; i < 16; i++ {
		ts := start.Add(time.Duration(i) * 100 * time.Millisecond)
		tracker.AddSample(NewSample(ts, 1.0))
		now := ts.Add(100 * time.Millisecond)
		if tracker.MaybeUpdatePeriod(now) {
			updated = true
			tracker.MaybeResizeBuffer()
			break
		}
	}

	if !updated {
		t.Fatalf("expected sampling period to be inferred once buffer reached capacity")
	}

	props := tracker.Properties()
	if props.SamplingPeriod == nil {
		t.Fatalf("expected sampling period to be set")
	}
	got := props.SamplingPeriod.Seconds()
	if got < 0.09 || got > 0.11 {
		t.Fatalf("inferred sampling period = %vs, want ~0.1s", got)
	}

	if tracker.Buffer().Capacity() != 20 {
		t.Fatalf("resized buffer capacity = %d, want 20", tracker.Buffer().Capacity())
	}
}

// TestEmptyRelevanceWindow mirrors spec scenario 6.
func TestEmptyRelevanceWindow(t *testing.T) {
	cfg := mustConfig(t, 1*time.Second, 2.0)
	logger := logx.NewLogger("debug", "")
	tracker := NewSourceTracker("src", cfg, logger)
	core := NewResamplerCore("src", cfg, tracker, logger)

	out := core.Resample(epoch(100))
	if out.HasValue() {
		t.Fatalf("expected empty sample, got value")
	}
	if !out.Timestamp.Equal(epoch(100)) {
		t.Fatalf("expected output timestamp to equal window end")
	}
}

// TestAddSampleDropsNaNAndAbsent verifies the NaN/absent filtering contract.
func TestAddSampleDropsNaNAndAbsent(t *testing.T) {
	cfg := mustConfig(t, 1*time.Second, 2.0)
	logger := logx.NewLogger("debug", "")
	tracker := NewSourceTracker("src", cfg, logger)

	tracker.AddSample(EmptySample(epoch(1)))
	tracker.AddSample(NewSample(epoch(2), nan()))
	if tracker.Buffer().Len() != 0 {
		t.Fatalf("expected absent/NaN samples to be dropped, buffer len = %d", tracker.Buffer().Len())
	}

	tracker.AddSample(NewSample(epoch(3), 1.0))
	if tracker.Buffer().Len() != 1 {
		t.Fatalf("expected one accepted sample, got %d", tracker.Buffer().Len())
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
