package keypool

import "errors"

// Common errors returned by the key pool.
var (
	// ErrNoKeyAvailable is returned when no key qualifies for selection.
	// This is a normal, expected outcome (all keys cooling down, disabled,
	// or out of rate budget), not a fault.
	ErrNoKeyAvailable = errors.New("keypool: no key available")

	// ErrKeyNotFound is returned when a key ID is not in the pool.
	ErrKeyNotFound = errors.New("keypool: key not found")

	// ErrNoKeys is returned when a pool is created with no keys configured.
	ErrNoKeys = errors.New("keypool: no keys configured")

	// ErrDuplicateKey is returned when two configured secrets are identical.
	ErrDuplicateKey = errors.New("keypool: duplicate key secret")
)
