package keypool

import (
	"fmt"

	"github.com/samber/lo"
)

// Policy chooses the next key to use given a pool snapshot.
// Implementations must be pure: same snapshot in, same decision out, with the
// exception of the random strategy.
type Policy interface {
	// Select returns the chosen key ID, or ErrNoKeyAvailable when no key
	// qualifies. The latter is a normal outcome the caller handles.
	Select(snap Snapshot) (string, error)

	// Name returns the strategy name for logging and configuration.
	Name() string
}

// Strategy constants for configuration.
const (
	StrategyLeastRecent = "least_recent"
	StrategyRandom      = "random"
)

// NewPolicy returns the Policy for the given strategy name.
// An empty strategy defaults to StrategyLeastRecent.
func NewPolicy(strategy string) (Policy, error) {
	switch strategy {
	case StrategyLeastRecent, "":
		return NewLeastRecentPolicy(), nil
	case StrategyRandom:
		return NewRandomPolicy(), nil
	default:
		return nil, fmt.Errorf("keypool: unknown strategy %q", strategy)
	}
}

// selectable filters a snapshot down to keys that qualify for selection.
func selectable(snap Snapshot) []KeyState {
	return lo.Filter(snap.Keys, func(k KeyState, _ int) bool {
		return k.Selectable()
	})
}
