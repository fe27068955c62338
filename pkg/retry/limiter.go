package retry

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter shapes outbound unary-call rate, replacing the teacher's
// hand-rolled window-counter RateLimiter with the ecosystem token-bucket
// primitive their own go.mod already carries.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows up to ratePerSecond calls per second, with burst as the
// maximum number of calls admitted instantaneously.
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a call is admitted or ctx is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call may proceed immediately, without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
