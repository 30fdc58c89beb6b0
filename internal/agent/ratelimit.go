package agent

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces model calls with a token bucket.
type RateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter allows maxBurst calls at once, refilling at ratePerMinute.
// A non-positive rate disables limiting.
func NewRateLimiter(maxBurst int, ratePerMinute float64) *RateLimiter {
	if maxBurst <= 0 {
		maxBurst = 5
	}
	if ratePerMinute <= 0 {
		return &RateLimiter{lim: rate.NewLimiter(rate.Inf, maxBurst)}
	}
	every := time.Duration(float64(time.Minute) / ratePerMinute)
	return &RateLimiter{lim: rate.NewLimiter(rate.Every(every), maxBurst)}
}

// Wait blocks until a call is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.lim.Wait(ctx)
}
