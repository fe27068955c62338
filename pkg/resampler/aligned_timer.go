package resampler

import (
	"context"
	"time"
)

// AlignedTimer ticks at a constant period anchored to an optional align-to
// instant, reporting wake drift on every tick so callers can detect missed
// ticks without losing the schedule.
type AlignedTimer struct {
	period     time.Duration
	nextTick   time.Time
	startDelay time.Duration
}

// NewAlignedTimer computes the first tick per spec: if alignTo is nil, the
// first tick is one period from now; otherwise it is aligned to alignTo,
// with an extra period of grace added when now is not already aligned.
func NewAlignedTimer(now time.Time, period time.Duration, alignTo *time.Time) *AlignedTimer {
	if alignTo == nil {
		return &AlignedTimer{period: period, nextTick: now.Add(period)}
	}

	elapsed := now.Sub(*alignTo) % period
	if elapsed < 0 {
		elapsed += period
	}
	if elapsed == 0 {
		return &AlignedTimer{period: period, nextTick: now.Add(period)}
	}

	return &AlignedTimer{
		period:     period,
		nextTick:   now.Add(2*period - elapsed),
		startDelay: period - elapsed,
	}
}

// NextTick returns the scheduled time of the next tick.
func (a *AlignedTimer) NextTick() time.Time { return a.nextTick }

// StartDelay returns how long the first wait should be held back to land on
// an aligned boundary. Zero when no alignment adjustment was needed.
func (a *AlignedTimer) StartDelay() time.Duration { return a.startDelay }

// Period returns the timer's tick period.
func (a *AlignedTimer) Period() time.Duration { return a.period }

// Advance moves the schedule forward by exactly one period, regardless of
// when the caller actually woke up, and returns the drift between the wake
// time passed in and the tick that was scheduled.
func (a *AlignedTimer) Advance(wokeAt time.Time) time.Duration {
	drift := wokeAt.Sub(a.nextTick)
	a.nextTick = a.nextTick.Add(a.period)
	return drift
}

// Wait blocks the calling goroutine until the next tick is due, or ctx is
// canceled. Returns the wake time and whether ctx was canceled first.
func (a *AlignedTimer) Wait(ctx context.Context) (time.Time, bool) {
	d := time.Until(a.nextTick)
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return time.Time{}, true
	case t := <-timer.C:
		return t, false
	}
}
