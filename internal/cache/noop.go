package cache

import "time"

// noopCache satisfies Cache without storing anything. Used when caching
// is disabled so callers never need a nil check.
type noopCache struct{}

var _ Cache = noopCache{}

// NewNoop returns a cache that never stores or returns values.
func NewNoop() Cache { return noopCache{} }

func (noopCache) Get(string) ([]byte, error)       { return nil, ErrNotFound }
func (noopCache) Set(string, []byte, time.Duration) {}
func (noopCache) Close()                            {}
