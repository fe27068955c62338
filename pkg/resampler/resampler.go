package resampler

import (
	"context"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

// Resampler is the public facade named in the external interface: a single
// entry point wrapping a ResamplerScheduler for callers that don't need
// direct access to the scheduling internals.
type Resampler struct {
	scheduler *ResamplerScheduler
}

// NewResampler builds a Resampler from a validated config.
func NewResampler(cfg *timeseries.ResamplerConfig, logger *logx.Logger) *Resampler {
	return &Resampler{scheduler: NewResamplerScheduler(cfg, logger)}
}

// AddTimeseries starts resampling a new timeseries. Returns false if source
// is already registered.
func (r *Resampler) AddTimeseries(ctx context.Context, name string, source Source, sink Sink) bool {
	return r.scheduler.AddTimeseries(ctx, name, source, sink)
}

// RemoveTimeseries stops resampling the timeseries produced by source.
// Returns false if nothing was removed.
func (r *Resampler) RemoveTimeseries(source Source) bool {
	return r.scheduler.RemoveTimeseries(source)
}

// Resample drives resampling of every registered timeseries until ctx is
// canceled or a pass fails (returning its *ResamplingError), or for exactly
// one pass if oneShot is true.
func (r *Resampler) Resample(ctx context.Context, oneShot bool) error {
	return r.scheduler.ResampleLoop(ctx, oneShot)
}

// Stop stops every registered timeseries binder.
func (r *Resampler) Stop() {
	r.scheduler.Stop()
}

// GetSourceProperties returns a copy of the properties tracked for source.
func (r *Resampler) GetSourceProperties(source Source) (timeseries.SourceProperties, bool) {
	return r.scheduler.GetSourceProperties(source)
}
