package main

import (
	"context"
	"fmt"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/audit"
	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/microgrid"
	"github.com/holmgren-io/microgrid-core/pkg/power"
	"github.com/holmgren-io/microgrid-core/pkg/resampler"
	"github.com/holmgren-io/microgrid-core/pkg/telemetry"
	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

// streamMaxSize bounds the per-component broadcast channel backing every
// meter/battery stream, per spec.md §5's blocking-backpressure model.
const streamMaxSize = 64

// wireMeter subscribes to a meter's data stream and registers it with the
// resampler; resampled output is published over telemetry only.
func wireMeter(ctx context.Context, mg *microgrid.Client, rs *resampler.Resampler, tc *telemetry.Client, componentID uint64) error {
	ch, err := mg.MeterData(ctx, componentID, streamMaxSize)
	if err != nil {
		return fmt.Errorf("subscribe meter %d: %w", componentID, err)
	}

	name := fmt.Sprintf("meter-%d", componentID)
	sink := sinkFunc(func(ctx context.Context, s timeseries.Sample) error {
		return tc.PublishSample(ctx, name, s)
	})

	if !rs.AddTimeseries(ctx, name, newMeterSource(ch), sink) {
		return fmt.Errorf("timeseries %q already registered", name)
	}
	return nil
}

// wireBattery subscribes to a battery's data stream, registers it with the
// resampler, and feeds each raw reading's bounds (from a second
// subscription) into Matryoshka as a low-priority proposal so the battery's
// own envelope always constrains the arbitration even absent any
// higher-priority tier.
func wireBattery(ctx context.Context, mg *microgrid.Client, rs *resampler.Resampler, tc *telemetry.Client, arb *power.Matryoshka, ledger *audit.Ledger, perf *logx.PerformanceLogger, componentID uint64) error {
	// Two independent subscriptions to the same component's broadcast, one
	// for the resampled output, one for the per-reading envelope report:
	// the broadcast exists precisely so concurrent subscribers don't steal
	// each other's messages off a single shared channel.
	resampleCh, err := mg.BatteryData(ctx, componentID, streamMaxSize)
	if err != nil {
		return fmt.Errorf("subscribe battery %d: %w", componentID, err)
	}
	envelopeCh, err := mg.BatteryData(ctx, componentID, streamMaxSize)
	if err != nil {
		return fmt.Errorf("subscribe battery %d: %w", componentID, err)
	}

	name := fmt.Sprintf("battery-%d", componentID)
	batteryIDs := []string{name}
	const batteryPriority = 0

	sink := sinkFunc(func(ctx context.Context, s timeseries.Sample) error {
		return tc.PublishSample(ctx, name, s)
	})

	source := newBatterySource(resampleCh)
	if !rs.AddTimeseries(ctx, name, source, sink) {
		return fmt.Errorf("timeseries %q already registered", name)
	}

	go reportBatteryEnvelope(ctx, envelopeCh, arb, ledger, perf, name, batteryIDs, batteryPriority)
	return nil
}

// reportBatteryEnvelope mirrors each raw battery reading's inclusion
// bounds into Matryoshka's ledger as it arrives, independent of the
// resampled output cadence — the envelope must narrow as soon as the
// battery reports it, not only once per resampling period.
func reportBatteryEnvelope(ctx context.Context, ch <-chan microgrid.BatteryData, arb *power.Matryoshka, ledger *audit.Ledger, perf *logx.PerformanceLogger, sourceID string, batteryIDs []string, priority int) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-ch:
			if !ok {
				return
			}
			proposal := proposalFromBattery(sourceID, batteryIDs, priority, d)
			system := power.PowerMetrics{
				Timestamp:       d.Timestamp,
				InclusionBounds: proposal.Bounds,
			}
			op := perf.StartOperation(ctx, "matryoshka_calculate_target_power")
			target := arb.CalculateTargetPower(batteryIDs, proposal, system, false)
			op.Complete(nil)
			if err := ledger.RecordDecision(audit.PowerDecision{
				Timestamp:   time.Now(),
				BatterySet:  batteryIDs,
				SourceID:    sourceID,
				Priority:    priority,
				TargetPower: target,
				Sent:        target != nil,
			}); err != nil {
				continue
			}
		}
	}
}
