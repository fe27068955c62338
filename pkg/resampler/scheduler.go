package resampler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

// ResamplerScheduler owns an AlignedTimer and a set of StreamBinders,
// driving one resampling pass per tick and aggregating per-source failures
// without letting a faulty source starve the rest.
//
// The scheduled window end is advanced by exactly one period per tick
// regardless of actual wake time, so every source's output timestamps stay
// deterministic even under scheduler drift.
type ResamplerScheduler struct {
	cfg    *timeseries.ResamplerConfig
	logger *logx.Logger

	mu      sync.Mutex
	binders map[Source]*StreamBinder
	order   []Source

	timer      *AlignedTimer
	windowEnd  time.Time
	tolerance  time.Duration
}

// NewResamplerScheduler creates a scheduler whose timer is armed per the
// config's AlignTo (construction time if nil).
func NewResamplerScheduler(cfg *timeseries.ResamplerConfig, logger *logx.Logger) *ResamplerScheduler {
	now := time.Now().UTC()
	timer := NewAlignedTimer(now, cfg.ResamplingPeriod, cfg.AlignTo)
	return &ResamplerScheduler{
		cfg:       cfg,
		logger:    logger,
		binders:   make(map[Source]*StreamBinder),
		timer:     timer,
		windowEnd: timer.NextTick(),
		tolerance: time.Duration(cfg.ResamplingPeriod.Seconds() / 10.0 * float64(time.Second)),
	}
}

// AddTimeseries inserts a new binder for source, starting its receive task.
// Returns false if source is already registered (identity-based).
func (s *ResamplerScheduler) AddTimeseries(ctx context.Context, name string, source Source, sink Sink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.binders[source]; exists {
		return false
	}

	binder := NewStreamBinder(ctx, name, source, sink, s.cfg, s.logger)
	s.binders[source] = binder
	s.order = append(s.order, source)
	return true
}

// RemoveTimeseries removes the binder for source. It does not stop it;
// callers remain responsible for the binder's lifecycle elsewhere.
func (s *ResamplerScheduler) RemoveTimeseries(source Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.binders[source]; !exists {
		return false
	}
	delete(s.binders, source)
	for i, src := range s.order {
		if src == source {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// GetSourceProperties returns the source properties tracked for source, and
// whether source is currently registered.
func (s *ResamplerScheduler) GetSourceProperties(source Source) (timeseries.SourceProperties, bool) {
	s.mu.Lock()
	binder, ok := s.binders[source]
	s.mu.Unlock()
	if !ok {
		return timeseries.SourceProperties{}, false
	}
	return binder.SourceProperties(), true
}

// ResampleLoop runs forever, driving one pass per tick, until ctx is
// canceled or oneShot is set (in which case it returns after the first
// pass). It returns a *ResamplingError for the first pass where one or more
// binders failed; the timer stays armed, so a later call resumes on the
// next scheduled window.
func (s *ResamplerScheduler) ResampleLoop(ctx context.Context, oneShot bool) error {
	for {
		wokeAt, canceled := s.timer.Wait(ctx)
		if canceled {
			return ctx.Err()
		}

		drift := s.timer.Advance(wokeAt)
		if drift > s.tolerance {
			s.logger.Warn("resampling task woke up late",
				"scheduled", s.windowEnd.Format(time.RFC3339Nano),
				"woke_at", wokeAt.Format(time.RFC3339Nano),
				"drift", drift.String(),
				"tolerance", s.tolerance.String(),
			)
		}

		passErr := s.runPass(ctx, s.windowEnd)
		s.windowEnd = s.windowEnd.Add(s.cfg.ResamplingPeriod)

		if passErr != nil {
			return passErr
		}
		if oneShot {
			return nil
		}
	}
}

func (s *ResamplerScheduler) runPass(ctx context.Context, windowEnd time.Time) error {
	s.mu.Lock()
	order := make([]Source, len(s.order))
	copy(order, s.order)
	binders := make([]*StreamBinder, len(order))
	for i, src := range order {
		binders[i] = s.binders[src]
	}
	names := make([]string, len(order))
	for i, b := range binders {
		names[i] = b.name
	}
	s.mu.Unlock()

	errs := make([]error, len(binders))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range binders {
		i, b := i, b
		g.Go(func() error {
			errs[i] = b.Resample(gctx, windowEnd)
			return nil
		})
	}
	_ = g.Wait()

	failures := make(map[string]error)
	for i, err := range errs {
		if err != nil {
			failures[names[i]] = err
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &ResamplingError{Failures: failures}
}

// Stop stops every registered binder concurrently.
func (s *ResamplerScheduler) Stop() {
	s.mu.Lock()
	binders := make([]*StreamBinder, 0, len(s.binders))
	for _, b := range s.binders {
		binders = append(binders, b)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(binders))
	for _, b := range binders {
		b := b
		go func() {
			defer wg.Done()
			b.Stop()
		}()
	}
	wg.Wait()
}
