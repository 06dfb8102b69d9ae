package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/pollenlabs/pollen-relay/internal/config"
)

// ConfigService wraps the loaded configuration with hot-reload support.
// The Runtime holds an atomic pointer so in-flight requests keep the config
// they started with while new requests see reloaded values.
type ConfigService struct {
	Runtime *config.Runtime
	Path    string
}

// Get returns the current configuration via atomic load (lock-free read).
// Implements config.RuntimeConfig.
func (c *ConfigService) Get() *config.Config {
	return c.Runtime.Get()
}

// NewConfig loads and validates the configuration from the config path.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &ConfigService{
		Runtime: config.NewRuntime(cfg),
		Path:    path,
	}, nil
}
