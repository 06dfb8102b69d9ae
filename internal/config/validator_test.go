package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Listen: "127.0.0.1:8080"},
		Pool: PoolConfig{
			Keys: []KeyConfig{{Secret: "sk-alpha"}, {Secret: "sk-beta"}},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "bad listen address",
			mutate:  func(c *Config) { c.Server.Listen = "no-port" },
			wantMsg: "server.listen",
		},
		{
			name:    "negative max_concurrent",
			mutate:  func(c *Config) { c.Server.MaxConcurrent = -1 },
			wantMsg: "server.max_concurrent",
		},
		{
			name:    "relative upstream URL",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "/prompt" },
			wantMsg: "upstream.base_url",
		},
		{
			name:    "no keys",
			mutate:  func(c *Config) { c.Pool.Keys = nil },
			wantMsg: "pool.keys must contain at least one key",
		},
		{
			name:    "empty secret",
			mutate:  func(c *Config) { c.Pool.Keys[1].Secret = "   " },
			wantMsg: "pool.keys[1].secret is empty",
		},
		{
			name:    "duplicate secret",
			mutate:  func(c *Config) { c.Pool.Keys[1].Secret = "sk-alpha" },
			wantMsg: "pool.keys[1].secret duplicates",
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Pool.Strategy = "round_robin" },
			wantMsg: "pool.strategy",
		},
		{
			name: "cooldown base above cap",
			mutate: func(c *Config) {
				c.Pool.CooldownBaseMS = 10000
				c.Pool.CooldownCapMS = 5000
			},
			wantMsg: "cooldown_base_ms",
		},
		{
			name:    "unknown rate limit algorithm",
			mutate:  func(c *Config) { c.RateLimit.Algorithm = "sliding_log" },
			wantMsg: "ratelimit.algorithm",
		},
		{
			name:    "negative window",
			mutate:  func(c *Config) { c.RateLimit.WindowMS = -1 },
			wantMsg: "ratelimit.window_ms must be >= 0",
		},
		{
			name:    "negative max_requests",
			mutate:  func(c *Config) { c.RateLimit.MaxRequests = -5 },
			wantMsg: "ratelimit.max_requests must be >= 0",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantMsg: "logging.level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantMsg: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Listen = "nope"
	cfg.Pool.Strategy = "bogus"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 3)
	assert.Contains(t, err.Error(), "3 errors")
}

func TestValidate_EmptyDefaultsAreValid(t *testing.T) {
	cfg := validConfig()
	cfg.Pool.Strategy = ""
	cfg.RateLimit.Algorithm = ""
	cfg.RateLimit.WindowMS = 0
	cfg.RateLimit.MaxRequests = 0
	cfg.Logging.Level = ""
	cfg.Logging.Format = ""

	require.NoError(t, cfg.Validate())
}
