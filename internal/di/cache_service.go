package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/pollenlabs/pollen-relay/internal/cache"
)

// CacheService wraps the response cache implementation.
type CacheService struct {
	Cache cache.Cache
}

// NewCache creates the response cache based on configuration.
func NewCache(i do.Injector) (*CacheService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	cacheCfg := cfgSvc.Get().Cache

	c, err := cache.New(cache.Config{
		Enabled:    cacheCfg.Enabled,
		TTL:        cacheCfg.GetTTL().OrEmpty(),
		MaxEntries: cacheCfg.GetMaxEntries(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return &CacheService{Cache: c}, nil
}

// Shutdown implements do.Shutdowner for graceful cache cleanup.
func (c *CacheService) Shutdown() error {
	if c.Cache != nil {
		c.Cache.Close()
	}
	return nil
}
