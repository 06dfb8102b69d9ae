// Package ratelimit provides per-key rate limit accounting for pollen-relay.
//
// The package abstracts over two limiter implementations:
//   - Fixed window: a boundary-aligned counter, exact per-window semantics
//   - Token bucket: golang.org/x/time/rate for smooth traffic shaping
//
// A Tracker owns one Limiter per upstream key, created lazily on first use.
// The pool manager passes an explicit timestamp to every operation so that
// accounting, snapshots, and tests all observe one consistent clock.
package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Algorithm names accepted by NewTracker.
const (
	AlgorithmFixedWindow = "fixed_window"
	AlgorithmTokenBucket = "token_bucket"
)

// Common errors returned by the package.
var (
	// ErrInvalidWindow is returned when a non-positive window is configured.
	ErrInvalidWindow = errors.New("ratelimit: window must be positive")

	// ErrInvalidLimit is returned when a non-positive request cap is configured.
	ErrInvalidLimit = errors.New("ratelimit: max requests must be positive")
)

// Limiter tracks request budget for a single key.
// Implementations are not required to be safe for concurrent use; the Tracker
// (and ultimately the pool manager's lock) serializes access.
type Limiter interface {
	// CanConsume reports whether one more request fits the current window.
	// Implementations must reset any expired window before checking, so a
	// stale window never produces a false negative.
	CanConsume(now time.Time) bool

	// Consume records one request. Returns false if the budget is exhausted.
	Consume(now time.Time) bool

	// Remaining returns the request budget left in the current window.
	Remaining(now time.Time) int

	// NextReset returns how long until budget becomes available again.
	NextReset(now time.Time) time.Duration
}

// newLimiter constructs a Limiter for the given algorithm.
func newLimiter(algorithm string, window time.Duration, maxRequests int) (Limiter, error) {
	switch algorithm {
	case AlgorithmFixedWindow, "":
		return newFixedWindow(window, maxRequests)
	case AlgorithmTokenBucket:
		return newTokenBucket(window, maxRequests)
	default:
		return nil, fmt.Errorf("ratelimit: unknown algorithm %q", algorithm)
	}
}
