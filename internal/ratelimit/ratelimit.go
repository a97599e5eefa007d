package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outbound calls with a token bucket
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new rate limiter with the specified rate (requests per second).
// The burst equals the rate, with a minimum of one.
func New(rps float64) *Limiter {
	if rps <= 0 {
		rps = 1.0
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or context is cancelled
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call may happen now without waiting
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
