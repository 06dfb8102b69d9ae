package keypool

import "github.com/samber/lo"

// LeastRecentPolicy picks the qualifying key with the oldest last-used
// timestamp (round-robin by recency). Ties break by lowest consecutive
// failure count, then by lowest ID, so the decision is deterministic and
// testable.
type LeastRecentPolicy struct{}

// NewLeastRecentPolicy creates a new least-recent policy.
func NewLeastRecentPolicy() *LeastRecentPolicy {
	return &LeastRecentPolicy{}
}

// Select picks the best qualifying key per the recency ordering.
// Returns ErrNoKeyAvailable if no key qualifies.
func (p *LeastRecentPolicy) Select(snap Snapshot) (string, error) {
	candidates := selectable(snap)
	if len(candidates) == 0 {
		return "", ErrNoKeyAvailable
	}

	best := lo.MinBy(candidates, func(a, b KeyState) bool {
		return preferredOver(a, b)
	})
	return best.ID, nil
}

// Name returns the strategy name.
func (p *LeastRecentPolicy) Name() string {
	return StrategyLeastRecent
}

// preferredOver reports whether a should be selected ahead of b.
// Total order: older LastUsedAt, then fewer consecutive failures, then
// lexicographically smaller ID.
func preferredOver(a, b KeyState) bool {
	if !a.LastUsedAt.Equal(b.LastUsedAt) {
		return a.LastUsedAt.Before(b.LastUsedAt)
	}
	if a.ConsecutiveFailures != b.ConsecutiveFailures {
		return a.ConsecutiveFailures < b.ConsecutiveFailures
	}
	return a.ID < b.ID
}
