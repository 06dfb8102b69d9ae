package keypool

import "time"

// KeyState is a point-in-time view of one key, safe to read without locks.
type KeyState struct {
	ID                  string
	Status              Status
	ConsecutiveFailures int
	LastUsedAt          time.Time

	// Remaining is the key's rate limit budget left in the current window.
	Remaining int

	// InUse marks keys bound to a live lease while the pool runs in
	// exclusive mode. Always false in shared mode.
	InUse bool
}

// Selectable reports whether the key qualifies for selection: available
// status, remaining budget, and no exclusive lease.
func (k KeyState) Selectable() bool {
	return k.Status == StatusAvailable && k.Remaining > 0 && !k.InUse
}

// Snapshot is an immutable view of the whole pool, produced by the Manager
// under its lock and handed to the selection policy. The policy never mutates
// pool state; it only reads the snapshot and returns a decision.
type Snapshot struct {
	TakenAt time.Time
	Keys    []KeyState
}
