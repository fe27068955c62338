// Package resampler wires a SourceTracker/ResamplerCore pair to a live
// Source/Sink pair, schedules resampling passes on a wall-clock aligned
// timer, and isolates per-source failures so one faulty stream never stops
// the rest.
package resampler

import (
	"context"

	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

// Source produces a stream of samples. Recv blocks until the next sample is
// available, the stream ends cleanly (io.EOF), or an error terminates it.
// A terminated Source must keep returning the same terminal error on every
// subsequent call.
type Source interface {
	Recv(ctx context.Context) (timeseries.Sample, error)
}

// Sink receives resampled output. An error returned from Send surfaces to
// the scheduler for that source's pass only; the underlying Source keeps
// being read.
type Sink interface {
	Send(ctx context.Context, s timeseries.Sample) error
}
