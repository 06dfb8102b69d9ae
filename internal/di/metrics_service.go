package di

import (
	"github.com/samber/do/v2"

	"github.com/pollenlabs/pollen-relay/internal/metrics"
)

// MetricsService wraps the Prometheus instrumentation.
type MetricsService struct {
	Metrics *metrics.Metrics
}

// NewMetrics creates the metrics registry with pool gauges attached.
func NewMetrics(i do.Injector) (*MetricsService, error) {
	poolSvc := do.MustInvoke[*PoolService](i)

	return &MetricsService{Metrics: metrics.New(poolSvc.Manager)}, nil
}
