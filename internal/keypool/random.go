package keypool

import (
	"crypto/rand"
	"math/big"
	"time"
)

// RandomPolicy picks a qualifying key uniformly at random.
// Useful for smoke tests and load spreading when recency ordering does not
// matter; not the default.
type RandomPolicy struct{}

// NewRandomPolicy creates a new random policy.
func NewRandomPolicy() *RandomPolicy {
	return &RandomPolicy{}
}

// Select picks a random qualifying key.
// Returns ErrNoKeyAvailable if no key qualifies.
func (p *RandomPolicy) Select(snap Snapshot) (string, error) {
	candidates := selectable(snap)
	if len(candidates) == 0 {
		return "", ErrNoKeyAvailable
	}
	return candidates[randIntn(len(candidates))].ID, nil
}

// Name returns the strategy name.
func (p *RandomPolicy) Name() string {
	return StrategyRandom
}

// randIntn returns a non-negative integer in [0, n). If n <= 0 it returns 0.
// It uses crypto/rand to produce a random value and falls back to a
// time-based source if crypto randomness fails.
func randIntn(n int) int {
	if n <= 0 {
		return 0
	}
	maxVal := big.NewInt(int64(n))
	if v, err := rand.Int(rand.Reader, maxVal); err == nil {
		return int(v.Int64())
	}
	return int(time.Now().UnixNano() % int64(n))
}
