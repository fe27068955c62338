package resampler

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

// StreamBinder couples a Source/Sink pair to a ResamplerCore, owning the
// long-lived goroutine that drains the source and feeds accepted samples to
// the tracker. A source's termination (clean end or error) is captured once
// and re-raised on every subsequent Resample call.
type StreamBinder struct {
	name   string
	source Source
	sink   Sink
	tracker *timeseries.SourceTracker
	core   *timeseries.ResamplerCore
	logger *logx.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	termErr  error
	finished bool
}

// NewStreamBinder creates a binder and starts its receive goroutine.
func NewStreamBinder(ctx context.Context, name string, source Source, sink Sink, cfg *timeseries.ResamplerConfig, logger *logx.Logger) *StreamBinder {
	tracker := timeseries.NewSourceTracker(name, cfg, logger)
	core := timeseries.NewResamplerCore(name, cfg, tracker, logger)

	bctx, cancel := context.WithCancel(ctx)
	b := &StreamBinder{
		name:    name,
		source:  source,
		sink:    sink,
		tracker: tracker,
		core:    core,
		logger:  logger,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go b.receiveLoop(bctx)
	return b
}

func (b *StreamBinder) receiveLoop(ctx context.Context) {
	defer close(b.done)

	for {
		sample, err := b.source.Recv(ctx)
		if err != nil {
			b.mu.Lock()
			b.finished = true
			if errors.Is(err, io.EOF) {
				b.termErr = &SourceStopped{Name: b.name}
			} else {
				b.termErr = &SourceError{Name: b.name, Err: err}
			}
			b.mu.Unlock()
			return
		}
		b.tracker.AddSample(sample)
	}
}

// Resample implements spec section 4.5: if the receive task has finished,
// re-raise its captured termination cause; otherwise compute and deliver
// one resampled output.
func (b *StreamBinder) Resample(ctx context.Context, windowEnd time.Time) error {
	b.mu.Lock()
	finished, termErr := b.finished, b.termErr
	b.mu.Unlock()

	if finished {
		return termErr
	}

	out := b.core.Resample(windowEnd)
	if err := b.sink.Send(ctx, out); err != nil {
		return &SinkError{Name: b.name, Err: err}
	}
	return nil
}

// SourceProperties returns a copy of this binder's tracker properties.
func (b *StreamBinder) SourceProperties() timeseries.SourceProperties {
	return b.tracker.Properties()
}

// Stop cancels the receive task and waits for it to exit.
func (b *StreamBinder) Stop() {
	b.cancel()
	<-b.done
}
