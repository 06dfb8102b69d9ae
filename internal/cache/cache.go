// Package cache provides the optional prompt response cache for pollen-relay.
//
// Identical prompts within a short TTL are served from memory without
// spending any upstream key budget. The cache is strictly an optimization:
// a miss or error always falls through to the relay path.
package cache

import (
	"errors"
	"time"
)

// Cache errors.
var (
	// ErrNotFound is returned when a key does not exist in the cache.
	ErrNotFound = errors.New("cache: key not found")
)

// Cache is a byte-value cache with per-entry TTL.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. Returns ErrNotFound on miss.
	Get(key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(key string, value []byte, ttl time.Duration)

	// Close releases cache resources.
	Close()
}

// Config defines the response cache.
type Config struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int64
}

// New creates a Cache from config: Ristretto when enabled, otherwise a no-op
// cache so callers never need a nil check.
func New(cfg Config) (Cache, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}
	return newRistretto(cfg)
}
