package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ristrettoCache implements Cache using Ristretto as the backend, which
// brings a frequency-based admission policy for free.
type ristrettoCache struct {
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

var _ Cache = (*ristrettoCache)(nil)

func newRistretto(cfg Config) (*ristrettoCache, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		// Ristretto recommends 10x counters per expected entry.
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: failed to create ristretto cache: %w", err)
	}

	return &ristrettoCache{cache: cache, ttl: cfg.TTL}, nil
}

func (r *ristrettoCache) Get(key string) ([]byte, error) {
	value, found := r.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	// Copy so callers cannot mutate the cached value.
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (r *ristrettoCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.ttl
	}
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	r.cache.SetWithTTL(key, valueCopy, 1, ttl)
}

func (r *ristrettoCache) Close() {
	r.cache.Close()
}
