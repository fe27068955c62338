package resampler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

// mockSource is a hand-written Source double feeding a fixed sequence of
// samples, then failing or ending cleanly, matching the teacher's
// MockController-style test doubles rather than a mocking framework.
type mockSource struct {
	mu      sync.Mutex
	samples []timeseries.Sample
	failErr error
}

func (m *mockSource) Recv(ctx context.Context) (timeseries.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.samples) == 0 {
		if m.failErr != nil {
			return timeseries.Sample{}, m.failErr
		}
		<-ctx.Done()
		return timeseries.Sample{}, ctx.Err()
	}

	s := m.samples[0]
	m.samples = m.samples[1:]
	return s, nil
}

type mockSink struct {
	mu       sync.Mutex
	received []timeseries.Sample
	failErr  error
}

func (m *mockSink) Send(ctx context.Context, s timeseries.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.received = append(m.received, s)
	return nil
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

// TestSourceFailureIsolation mirrors spec scenario 5: source A fails
// midstream while source B keeps succeeding, and the scheduler isolates the
// failure to A alone.
func TestSourceFailureIsolation(t *testing.T) {
	cfg, err := timeseries.NewResamplerConfig(time.Second, 2.0)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	logger := logx.NewLogger("debug", "")
	sched := NewResamplerScheduler(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sourceA := &mockSource{failErr: errors.New("boom")}
	sinkA := &mockSink{}
	sourceB := &mockSource{samples: []timeseries.Sample{timeseries.NewSample(time.Now().UTC(), 1.0)}}
	sinkB := &mockSink{}

	sched.AddTimeseries(ctx, "A", sourceA, sinkA)
	sched.AddTimeseries(ctx, "B", sourceB, sinkB)

	// Give the receive goroutines a moment to observe termination/samples.
	time.Sleep(20 * time.Millisecond)

	err = sched.runPass(ctx, time.Now().UTC())
	var re *ResamplingError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ResamplingError, got %v", err)
	}
	if _, ok := re.Failures["A"]; !ok {
		t.Fatalf("expected source A to be in failures, got %v", re.Failures)
	}
	if _, ok := re.Failures["B"]; ok {
		t.Fatalf("expected source B to have succeeded, got failure %v", re.Failures["B"])
	}
	if sinkB.count() != 1 {
		t.Fatalf("expected B's output delivered to its sink, got %d", sinkB.count())
	}

	// Next pass: A still raises, B still succeeds.
	err = sched.runPass(ctx, time.Now().UTC())
	if !errors.As(err, &re) {
		t.Fatalf("expected *ResamplingError on second pass, got %v", err)
	}
	if _, ok := re.Failures["A"]; !ok {
		t.Fatalf("expected source A to keep failing on second pass")
	}
}

func TestAddTimeseriesRejectsDuplicateSource(t *testing.T) {
	cfg, _ := timeseries.NewResamplerConfig(time.Second, 2.0)
	logger := logx.NewLogger("debug", "")
	sched := NewResamplerScheduler(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &mockSource{}
	sink := &mockSink{}

	if !sched.AddTimeseries(ctx, "x", src, sink) {
		t.Fatalf("expected first AddTimeseries to succeed")
	}
	if sched.AddTimeseries(ctx, "x-again", src, sink) {
		t.Fatalf("expected duplicate source to be rejected")
	}
}

func TestStreamBinderReRaisesCleanStop(t *testing.T) {
	cfg, _ := timeseries.NewResamplerConfig(time.Second, 2.0)
	logger := logx.NewLogger("debug", "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &mockSource{failErr: io.EOF}
	sink := &mockSink{}
	binder := NewStreamBinder(ctx, "x", src, sink, cfg, logger)

	time.Sleep(10 * time.Millisecond)

	err := binder.Resample(ctx, time.Now().UTC())
	var stopped *SourceStopped
	if !errors.As(err, &stopped) {
		t.Fatalf("expected *SourceStopped, got %v", err)
	}
}
