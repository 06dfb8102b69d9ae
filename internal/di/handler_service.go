package di

import (
	"net/http"

	"github.com/samber/do/v2"

	"github.com/pollenlabs/pollen-relay/internal/proxy"
)

// HandlerService wraps the HTTP handler and the live admission limits the
// config reload path adjusts.
type HandlerService struct {
	Handler http.Handler
	Limits  *proxy.InboundLimits
}

// NewHandler creates the HTTP handler with all routes and middleware.
func NewHandler(i do.Injector) (*HandlerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	relaySvc := do.MustInvoke[*RelayService](i)
	poolSvc := do.MustInvoke[*PoolService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	promptHandler := proxy.NewPromptHandler(
		relaySvc.Relay,
		poolSvc.Manager,
		cfgSvc,
		metricsSvc.Metrics,
		*logSvc.Logger,
	)
	adminHandler := proxy.NewAdminHandler(poolSvc.Manager, *logSvc.Logger)

	limits := proxy.NewInboundLimits(cfgSvc.Get().Server)
	handler := proxy.SetupRoutes(proxy.Routes{
		Config:  cfgSvc,
		Prompt:  promptHandler,
		Admin:   adminHandler,
		Metrics: metricsSvc.Metrics.Handler(),
		Logger:  *logSvc.Logger,
		Limits:  limits,
	})

	return &HandlerService{Handler: handler, Limits: limits}, nil
}
