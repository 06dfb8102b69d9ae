package proxy

import (
	"golang.org/x/time/rate"

	"github.com/pollenlabs/pollen-relay/internal/config"
)

// InboundLimits groups the admission limits shared by the prompt route and
// the config reload path. Both limiters adjust in place, so a reload takes
// effect without rebuilding the middleware chain.
type InboundLimits struct {
	Concurrency *ConcurrencyLimiter
	Throttle    *rate.Limiter
}

// NewInboundLimits builds the admission limits from server config.
func NewInboundLimits(server config.ServerConfig) *InboundLimits {
	return &InboundLimits{
		Concurrency: NewConcurrencyLimiter(server.MaxConcurrent),
		Throttle:    rate.NewLimiter(throttleLimit(server), throttleBurst(server)),
	}
}

// Apply updates the limits from a reloaded server config.
func (l *InboundLimits) Apply(server config.ServerConfig) {
	l.Concurrency.SetLimit(server.MaxConcurrent)
	l.Throttle.SetLimit(throttleLimit(server))
	l.Throttle.SetBurst(throttleBurst(server))
}

func throttleLimit(server config.ServerConfig) rate.Limit {
	if server.InboundRPS <= 0 {
		return rate.Inf
	}
	return rate.Limit(server.InboundRPS)
}

func throttleBurst(server config.ServerConfig) int {
	if server.InboundBurst <= 0 {
		return 1
	}
	return server.InboundBurst
}
