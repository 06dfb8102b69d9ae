package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// tokenBucket implements Limiter on top of golang.org/x/time/rate.
//
// The bucket refills at maxRequests per window with burst equal to
// maxRequests, so a full window's capacity can be consumed instantly and then
// refills gradually. This avoids the boundary burst of fixed windows at the
// cost of inexact per-window counting.
type tokenBucket struct {
	limiter     *rate.Limiter
	maxRequests int
}

func newTokenBucket(window time.Duration, maxRequests int) (*tokenBucket, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	if maxRequests <= 0 {
		return nil, ErrInvalidLimit
	}
	perSecond := float64(maxRequests) / window.Seconds()
	return &tokenBucket{
		limiter:     rate.NewLimiter(rate.Limit(perSecond), maxRequests),
		maxRequests: maxRequests,
	}, nil
}

func (l *tokenBucket) CanConsume(now time.Time) bool {
	return l.limiter.TokensAt(now) >= 1
}

func (l *tokenBucket) Consume(now time.Time) bool {
	return l.limiter.AllowN(now, 1)
}

func (l *tokenBucket) Remaining(now time.Time) int {
	tokens := int(l.limiter.TokensAt(now))
	if tokens < 0 {
		return 0
	}
	if tokens > l.maxRequests {
		return l.maxRequests
	}
	return tokens
}

func (l *tokenBucket) NextReset(now time.Time) time.Duration {
	if l.CanConsume(now) {
		return 0
	}
	reservation := l.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return delay
}
