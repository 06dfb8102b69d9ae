package ratelimit

import (
	"fmt"
	"time"
)

// Config defines per-key rate limit accounting.
type Config struct {
	// Algorithm selects the limiter implementation. Empty = fixed_window.
	Algorithm string

	// Window is the accounting window size.
	Window time.Duration

	// MaxRequests bounds requests per key per window.
	MaxRequests int
}

// Tracker owns the rate limit state for every key in the pool, keyed by key
// ID (a non-owning back-reference to the key record). Limiters are created
// lazily on a key's first use.
//
// Tracker is not internally synchronized: the pool manager serializes all
// access under its own lock, together with key record mutation, so limiter
// state and record state can never disagree mid-operation.
type Tracker struct {
	limiters map[string]Limiter
	cfg      Config
}

// NewTracker creates a Tracker with the given accounting config.
func NewTracker(cfg Config) (*Tracker, error) {
	// Fail fast on bad config rather than at first use.
	if _, err := newLimiter(cfg.Algorithm, cfg.Window, cfg.MaxRequests); err != nil {
		return nil, fmt.Errorf("ratelimit: invalid tracker config: %w", err)
	}
	return &Tracker{
		limiters: make(map[string]Limiter),
		cfg:      cfg,
	}, nil
}

func (t *Tracker) limiter(id string) Limiter {
	if lim, ok := t.limiters[id]; ok {
		return lim
	}
	lim, err := newLimiter(t.cfg.Algorithm, t.cfg.Window, t.cfg.MaxRequests)
	if err != nil {
		// Config was validated in NewTracker; this cannot fail afterwards.
		panic(err)
	}
	t.limiters[id] = lim
	return lim
}

// CanConsume reports whether the key has remaining budget, resetting an
// expired window first.
func (t *Tracker) CanConsume(id string, now time.Time) bool {
	return t.limiter(id).CanConsume(now)
}

// Consume records one request against the key.
// Returns false if the key's budget is exhausted.
func (t *Tracker) Consume(id string, now time.Time) bool {
	return t.limiter(id).Consume(now)
}

// Remaining returns the key's remaining request budget.
func (t *Tracker) Remaining(id string, now time.Time) int {
	return t.limiter(id).Remaining(now)
}

// ResetIfExpired advances the key's window if it has elapsed.
// CanConsume and Consume already do this internally; the explicit form exists
// for callers that only want the reset side effect.
func (t *Tracker) ResetIfExpired(id string, now time.Time) {
	t.limiter(id).Remaining(now)
}

// NextReset returns the shortest duration until any tracked key regains
// budget. Used to derive Retry-After hints when the whole pool is exhausted.
// Returns the full window size if no key has been tracked yet.
func (t *Tracker) NextReset(now time.Time) time.Duration {
	if len(t.limiters) == 0 {
		return t.cfg.Window
	}
	shortest := time.Duration(-1)
	for _, lim := range t.limiters {
		d := lim.NextReset(now)
		if shortest < 0 || d < shortest {
			shortest = d
		}
	}
	return shortest
}
