package di

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/pollenlabs/pollen-relay/internal/health"
)

// BreakerService wraps the upstream circuit breaker.
type BreakerService struct {
	Breaker *health.Breaker
}

// NewBreaker creates the circuit breaker for the upstream service.
func NewBreaker(i do.Injector) (*BreakerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	breakerCfg := cfgSvc.Get().Upstream.Breaker

	breaker := health.NewBreaker("upstream", health.Config{
		FailureThreshold: breakerCfg.FailureThreshold,
		OpenDuration:     time.Duration(breakerCfg.OpenDurationMS) * time.Millisecond,
		HalfOpenProbes:   breakerCfg.HalfOpenProbes,
	}, logSvc.Logger)

	return &BreakerService{Breaker: breaker}, nil
}
