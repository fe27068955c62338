package timeseries

import (
	"math"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
)

// SourceTracker wraps a RingBuffer and SourceProperties for a single input
// stream, implementing the adaptive period-inference and buffer-resize
// policy described for ResamplerCore.
type SourceTracker struct {
	name   string
	cfg    *ResamplerConfig
	buffer *RingBuffer
	props  SourceProperties
	logger *logx.Logger
}

// NewSourceTracker creates a tracker whose buffer starts at
// cfg.InitialBufferLen.
func NewSourceTracker(name string, cfg *ResamplerConfig, logger *logx.Logger) *SourceTracker {
	return &SourceTracker{
		name:   name,
		cfg:    cfg,
		buffer: NewRingBuffer(cfg.InitialBufferLen),
		logger: logger,
	}
}

// Buffer exposes the underlying ring buffer for ResamplerCore's window
// selection.
func (t *SourceTracker) Buffer() *RingBuffer { return t.buffer }

// Properties returns a copy of the tracker's current source properties.
func (t *SourceTracker) Properties() SourceProperties { return t.props.Copy() }

// AddSample rejects samples with an absent or NaN value (dropped silently);
// otherwise pushes to the buffer, recording sampling_start on first accept
// and incrementing received_samples.
func (t *SourceTracker) AddSample(s Sample) {
	v, ok := s.BaseValue()
	if !ok || math.IsNaN(v) {
		return
	}

	t.buffer.Push(s)
	if t.props.SamplingStart == nil {
		ts := s.Timestamp
		t.props.SamplingStart = &ts
	}
	t.props.ReceivedSamples++
}

// MaybeUpdatePeriod updates SamplingPeriod at most once, when all of these
// hold: it is still unset, a first sample has been accepted, at least
// ResamplingPeriod.Seconds() * MaxDataAgeInPeriods samples were received,
// the buffer is at capacity, and now is after the first sample. The period
// is (now - SamplingStart) / ReceivedSamples. Returns whether it updated.
func (t *SourceTracker) MaybeUpdatePeriod(now time.Time) bool {
	props := &t.props
	threshold := t.cfg.ResamplingPeriod.Seconds() * t.cfg.MaxDataAgeInPeriods

	if props.SamplingPeriod != nil ||
		props.SamplingStart == nil ||
		float64(props.ReceivedSamples) < threshold ||
		t.buffer.Len() < t.buffer.Capacity() ||
		!now.After(*props.SamplingStart) {
		return false
	}

	elapsed := now.Sub(*props.SamplingStart)
	period := time.Duration(elapsed.Seconds() / float64(props.ReceivedSamples) * float64(time.Second))
	props.SamplingPeriod = &period

	t.logger.Debug("inferred input sampling period",
		"source", t.name,
		"sampling_period", period.String(),
	)
	return true
}

// MaybeResizeBuffer recomputes the buffer length from the inferred input
// sampling period and rebuilds the buffer if it changed. Must only be
// called after MaybeUpdatePeriod returned true.
func (t *SourceTracker) MaybeResizeBuffer() bool {
	inputPeriod := *t.props.SamplingPeriod
	cfg := t.cfg

	var newLen int
	if inputPeriod > cfg.ResamplingPeriod {
		newLen = int(math.Ceil(inputPeriod.Seconds() * cfg.MaxDataAgeInPeriods))
	} else {
		newLen = int(math.Ceil(cfg.ResamplingPeriod.Seconds() / inputPeriod.Seconds() * cfg.MaxDataAgeInPeriods))
	}

	if newLen < 1 {
		newLen = 1
	}
	if newLen > cfg.MaxBufferLen {
		t.logger.Error("buffer length clamped at max",
			"source", t.name,
			"computed", newLen,
			"max_buffer_len", cfg.MaxBufferLen,
		)
		newLen = cfg.MaxBufferLen
	} else if newLen > cfg.WarnBufferLen {
		t.logger.Warn("buffer length exceeds warn threshold",
			"source", t.name,
			"computed", newLen,
			"warn_buffer_len", cfg.WarnBufferLen,
		)
	}

	if newLen == t.buffer.Capacity() {
		return false
	}

	t.buffer.Rebuild(newLen)
	return true
}
