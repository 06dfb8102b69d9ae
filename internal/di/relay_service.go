package di

import (
	"github.com/samber/do/v2"

	"github.com/pollenlabs/pollen-relay/internal/relay"
)

// RelayService wraps the relay orchestrator.
type RelayService struct {
	Relay *relay.Relay
}

// NewRelay assembles the relay from the pool, upstream client, breaker,
// cache, and metrics.
func NewRelay(i do.Injector) (*RelayService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	poolSvc := do.MustInvoke[*PoolService](i)
	upstreamSvc := do.MustInvoke[*UpstreamService](i)
	breakerSvc := do.MustInvoke[*BreakerService](i)
	cacheSvc := do.MustInvoke[*CacheService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	rly := relay.New(
		poolSvc.Manager,
		upstreamSvc.Client,
		breakerSvc.Breaker,
		cacheSvc.Cache,
		metricsSvc.Metrics,
		relay.Config{RetryBudget: cfgSvc.Get().Upstream.GetRetryBudget()},
		*logSvc.Logger,
	)

	return &RelayService{Relay: rly}, nil
}
