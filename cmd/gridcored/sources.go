package main

import (
	"context"
	"io"

	"github.com/holmgren-io/microgrid-core/pkg/microgrid"
	"github.com/holmgren-io/microgrid-core/pkg/power"
	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

// meterSource adapts a microgrid.Client meter stream to resampler.Source,
// mapping each MeterData reading onto a resampling Sample.
type meterSource struct {
	ch <-chan microgrid.MeterData
}

func newMeterSource(ch <-chan microgrid.MeterData) *meterSource {
	return &meterSource{ch: ch}
}

// Recv blocks for the next reading. Once the channel closes, every
// subsequent call returns io.EOF so the StreamBinder can report
// SourceStopped, per spec.md §4.5.
func (s *meterSource) Recv(ctx context.Context) (timeseries.Sample, error) {
	select {
	case <-ctx.Done():
		return timeseries.Sample{}, ctx.Err()
	case d, ok := <-s.ch:
		if !ok {
			return timeseries.Sample{}, io.EOF
		}
		return timeseries.NewSample(d.Timestamp, d.ActivePowerW), nil
	}
}

// sinkFunc adapts a plain function to resampler.Sink.
type sinkFunc func(ctx context.Context, s timeseries.Sample) error

func (f sinkFunc) Send(ctx context.Context, s timeseries.Sample) error {
	return f(ctx, s)
}

// batterySource adapts a microgrid.Client battery stream to
// resampler.Source, resampling state-of-charge percentage.
type batterySource struct {
	ch <-chan microgrid.BatteryData
}

func newBatterySource(ch <-chan microgrid.BatteryData) *batterySource {
	return &batterySource{ch: ch}
}

func (s *batterySource) Recv(ctx context.Context) (timeseries.Sample, error) {
	select {
	case <-ctx.Done():
		return timeseries.Sample{}, ctx.Err()
	case d, ok := <-s.ch:
		if !ok {
			return timeseries.Sample{}, io.EOF
		}
		return timeseries.NewSample(d.Timestamp, d.SoCPercent), nil
	}
}

// proposalFromBattery turns a raw battery reading into a
// Matryoshka proposal carrying the battery's own inclusion bounds at a
// fixed low priority, so an idle battery pool still constrains the
// envelope even with no external tier proposing anything.
func proposalFromBattery(sourceID string, batteryIDs []string, priority int, d microgrid.BatteryData) power.Proposal {
	return power.Proposal{
		BatteryIDs: batteryIDs,
		SourceID:   sourceID,
		Priority:   priority,
		Bounds: power.Bounds{
			Lower: d.InclusionBoundsLowerW,
			Upper: d.InclusionBoundsUpperW,
		},
	}
}
