package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/pollenlabs/pollen-relay/internal/upstream"
)

// UpstreamService wraps the upstream HTTP client.
type UpstreamService struct {
	Client *upstream.Client
}

// NewUpstream creates the upstream client.
func NewUpstream(i do.Injector) (*UpstreamService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	upstreamCfg := cfgSvc.Get().Upstream

	client, err := upstream.NewClient(upstream.Config{
		BaseURL: upstreamCfg.GetBaseURL(),
		Timeout: upstreamCfg.GetTimeout(),
	}, *logSvc.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	return &UpstreamService{Client: client}, nil
}
