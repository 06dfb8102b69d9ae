package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/pollenlabs/pollen-relay/internal/keypool"
	"github.com/pollenlabs/pollen-relay/internal/ratelimit"
)

// PoolService wraps the key pool manager and its background sweep.
type PoolService struct {
	Manager *keypool.Manager
}

// NewPool builds the key record store, rate limit tracker, and selection
// policy, then assembles the pool manager and starts its sweep.
//
// The key list is fixed at startup; hot reload covers per-request settings
// only. Changing the pool requires a restart.
func NewPool(i do.Injector) (*PoolService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	cfg := cfgSvc.Get()

	store, err := keypool.NewStore(cfg.Pool.Secrets(), keypool.StoreConfig{
		CooldownBase:         cfg.Pool.GetCooldownBase(),
		CooldownCap:          cfg.Pool.GetCooldownCap(),
		DefaultCooldown:      cfg.Pool.GetDefaultCooldown(),
		TransientThreshold:   cfg.Pool.GetTransientThreshold(),
		AuthFailureThreshold: cfg.Pool.GetAuthFailureThreshold(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build key store: %w", err)
	}

	tracker, err := ratelimit.NewTracker(ratelimit.Config{
		Algorithm:   cfg.RateLimit.Algorithm,
		Window:      cfg.RateLimit.GetWindow(),
		MaxRequests: cfg.RateLimit.GetMaxRequests(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build rate limit tracker: %w", err)
	}

	policy, err := keypool.NewPolicy(cfg.Pool.Strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to build selection policy: %w", err)
	}

	manager := keypool.NewManager(store, tracker, policy, keypool.ManagerConfig{
		Exclusive:     cfg.Pool.Exclusive,
		LeaseTimeout:  cfg.Pool.GetLeaseTimeout(),
		SweepInterval: cfg.Pool.GetSweepInterval(),
	})
	manager.StartSweep()

	return &PoolService{Manager: manager}, nil
}

// Shutdown implements do.Shutdowner, stopping the background sweep.
func (p *PoolService) Shutdown() error {
	if p.Manager != nil {
		p.Manager.Stop()
	}
	return nil
}
