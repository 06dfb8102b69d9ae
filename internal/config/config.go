// Package config provides configuration loading, parsing, and validation for pollen-relay.
package config

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
)

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Default values applied by the getter methods.
const (
	DefaultListen             = ":8080"
	DefaultUpstreamBaseURL    = "https://text.pollinations.ai/prompt"
	DefaultUpstreamTimeoutMS  = 30000
	DefaultRetryBudget        = 1
	DefaultWindowMS           = 3600000 // one hour, matching the upstream free tier
	DefaultMaxRequests        = 100
	DefaultLeaseTimeoutMS     = 30000
	DefaultSweepIntervalMS    = 5000
	DefaultCooldownBaseMS     = 1000
	DefaultCooldownCapMS      = 300000
	DefaultCooldownMS         = 60000
	DefaultTransientThreshold = 3
	DefaultAuthThreshold      = 3
	DefaultCacheTTLSeconds    = 60
	DefaultCacheMaxEntries    = 4096
)

// RuntimeConfig defines the interface for accessing runtime configuration that
// supports hot-reload. Components that need to observe config changes should
// use this interface instead of holding a direct *Config pointer, which would
// become stale after hot-reload.
type RuntimeConfig interface {
	Get() *Config
}

// Config represents the complete pollen-relay configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Pool      PoolConfig      `yaml:"pool"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig defines inbound server settings.
type ServerConfig struct {
	// Listen is the address the HTTP server binds to.
	Listen string `yaml:"listen"`

	// AdminToken guards the /admin endpoints via the x-admin-token header.
	// If empty, the admin surface is disabled entirely.
	AdminToken string `yaml:"admin_token"`

	// MaxConcurrent caps in-flight requests. 0 = unlimited.
	MaxConcurrent int64 `yaml:"max_concurrent"`

	// MaxBodyBytes caps inbound request body size. 0 = unlimited.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// InboundRPS throttles total inbound requests per second. 0 = unlimited.
	InboundRPS float64 `yaml:"inbound_rps"`

	// InboundBurst is the burst size for the inbound throttle.
	InboundBurst int `yaml:"inbound_burst"`

	// EnableHTTP2 enables HTTP/2 cleartext (h2c) support.
	EnableHTTP2 bool `yaml:"enable_http2"`

	// RejectCallerKey rejects requests carrying their own api_key field
	// instead of silently ignoring it.
	RejectCallerKey bool `yaml:"reject_caller_key"`
}

// GetListen returns the listen address with default fallback.
func (s *ServerConfig) GetListen() string {
	if s.Listen == "" {
		return DefaultListen
	}
	return s.Listen
}

// UpstreamConfig defines the downstream generative service endpoint.
type UpstreamConfig struct {
	// BaseURL is the upstream prompt endpoint; the prompt text is appended
	// as a path segment.
	BaseURL string `yaml:"base_url"`

	// TimeoutMS bounds a single upstream round trip.
	TimeoutMS int `yaml:"timeout_ms"`

	// RetryBudget is the number of internal retries with a different key
	// after a classified failure. nil defaults to 1; 0 disables retries.
	RetryBudget *int `yaml:"retry_budget"`

	// Breaker tunes the upstream circuit breaker.
	Breaker BreakerConfig `yaml:"circuit_breaker"`
}

// GetBaseURL returns the upstream base URL with default fallback.
func (u *UpstreamConfig) GetBaseURL() string {
	if u.BaseURL == "" {
		return DefaultUpstreamBaseURL
	}
	return u.BaseURL
}

// GetTimeout returns the upstream timeout as a duration.
func (u *UpstreamConfig) GetTimeout() time.Duration {
	if u.TimeoutMS <= 0 {
		return DefaultUpstreamTimeoutMS * time.Millisecond
	}
	return time.Duration(u.TimeoutMS) * time.Millisecond
}

// GetRetryBudget returns the configured retry budget or the default of 1.
func (u *UpstreamConfig) GetRetryBudget() int {
	if u.RetryBudget == nil || *u.RetryBudget < 0 {
		return DefaultRetryBudget
	}
	return *u.RetryBudget
}

// BreakerConfig defines upstream circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int `yaml:"failure_threshold"`

	// OpenDurationMS is how long the circuit stays open before half-open.
	OpenDurationMS int `yaml:"open_duration_ms"`

	// HalfOpenProbes is the number of probe requests allowed in half-open state.
	HalfOpenProbes int `yaml:"half_open_probes"`
}

// PoolConfig defines the upstream key pool.
type PoolConfig struct {
	// Keys are the upstream credentials, loaded once at startup.
	Keys []KeyConfig `yaml:"keys"`

	// Strategy selects the key selection policy (least_recent, random).
	Strategy string `yaml:"strategy"`

	// Exclusive binds each key to at most one live lease.
	Exclusive bool `yaml:"exclusive"`

	LeaseTimeoutMS  int `yaml:"lease_timeout_ms"`
	SweepIntervalMS int `yaml:"sweep_interval_ms"`

	// Cooldown curve for transient failures: base * 2^failures, capped.
	CooldownBaseMS int `yaml:"cooldown_base_ms"`
	CooldownCapMS  int `yaml:"cooldown_cap_ms"`

	// DefaultCooldownMS applies to rate-limited keys with no retry-after hint.
	DefaultCooldownMS int `yaml:"default_cooldown_ms"`

	// TransientThreshold is the consecutive transient failure count that
	// starts the exponential cooldown.
	TransientThreshold int `yaml:"transient_threshold"`

	// AuthFailureThreshold is the consecutive auth failure count that
	// permanently disables a key.
	AuthFailureThreshold int `yaml:"auth_failure_threshold"`
}

// KeyConfig defines a single upstream key.
type KeyConfig struct {
	// Secret is the actual upstream API key. Never logged.
	Secret string `yaml:"secret"`
}

// GetLeaseTimeout returns the lease timeout as a duration.
func (p *PoolConfig) GetLeaseTimeout() time.Duration {
	if p.LeaseTimeoutMS <= 0 {
		return DefaultLeaseTimeoutMS * time.Millisecond
	}
	return time.Duration(p.LeaseTimeoutMS) * time.Millisecond
}

// GetSweepInterval returns the lease sweep interval as a duration.
func (p *PoolConfig) GetSweepInterval() time.Duration {
	if p.SweepIntervalMS <= 0 {
		return DefaultSweepIntervalMS * time.Millisecond
	}
	return time.Duration(p.SweepIntervalMS) * time.Millisecond
}

// GetCooldownBase returns the base cooldown delay for transient failures.
func (p *PoolConfig) GetCooldownBase() time.Duration {
	if p.CooldownBaseMS <= 0 {
		return DefaultCooldownBaseMS * time.Millisecond
	}
	return time.Duration(p.CooldownBaseMS) * time.Millisecond
}

// GetCooldownCap returns the maximum cooldown delay.
func (p *PoolConfig) GetCooldownCap() time.Duration {
	if p.CooldownCapMS <= 0 {
		return DefaultCooldownCapMS * time.Millisecond
	}
	return time.Duration(p.CooldownCapMS) * time.Millisecond
}

// GetDefaultCooldown returns the cooldown used when the upstream throttles a
// key without a retry-after hint.
func (p *PoolConfig) GetDefaultCooldown() time.Duration {
	if p.DefaultCooldownMS <= 0 {
		return DefaultCooldownMS * time.Millisecond
	}
	return time.Duration(p.DefaultCooldownMS) * time.Millisecond
}

// GetTransientThreshold returns the transient failure threshold or default 3.
func (p *PoolConfig) GetTransientThreshold() int {
	if p.TransientThreshold <= 0 {
		return DefaultTransientThreshold
	}
	return p.TransientThreshold
}

// GetAuthFailureThreshold returns the auth failure threshold or default 3.
func (p *PoolConfig) GetAuthFailureThreshold() int {
	if p.AuthFailureThreshold <= 0 {
		return DefaultAuthThreshold
	}
	return p.AuthFailureThreshold
}

// Secrets returns the raw key secrets in config order.
func (p *PoolConfig) Secrets() []string {
	secrets := make([]string, 0, len(p.Keys))
	for _, k := range p.Keys {
		secrets = append(secrets, k.Secret)
	}
	return secrets
}

// RateLimitConfig defines per-key rate limit accounting.
type RateLimitConfig struct {
	// Algorithm selects the limiter implementation (fixed_window, token_bucket).
	Algorithm string `yaml:"algorithm"`

	// WindowMS is the accounting window size.
	WindowMS int `yaml:"window_ms"`

	// MaxRequests bounds requests per key per window.
	MaxRequests int `yaml:"max_requests"`
}

// GetWindow returns the window size as a duration.
func (r *RateLimitConfig) GetWindow() time.Duration {
	if r.WindowMS <= 0 {
		return DefaultWindowMS * time.Millisecond
	}
	return time.Duration(r.WindowMS) * time.Millisecond
}

// GetMaxRequests returns the per-window request cap or default 100.
func (r *RateLimitConfig) GetMaxRequests() int {
	if r.MaxRequests <= 0 {
		return DefaultMaxRequests
	}
	return r.MaxRequests
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`

	// Format is one of json, console, pretty. Default: terminal autodetect.
	Format string `yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `yaml:"output"`

	// Pretty forces colored console output regardless of terminal detection.
	Pretty bool `yaml:"pretty"`
}

// ParseLevel converts the configured level string to a zerolog level.
// Unknown or empty values default to info.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch l.Level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// CacheConfig defines the optional prompt response cache.
type CacheConfig struct {
	Enabled    bool  `yaml:"enabled"`
	TTLSeconds int   `yaml:"ttl_seconds"`
	MaxEntries int64 `yaml:"max_entries"`
}

// GetTTL returns the cache entry TTL as a duration Option.
// Returns None when caching is disabled.
func (c *CacheConfig) GetTTL() mo.Option[time.Duration] {
	if !c.Enabled {
		return mo.None[time.Duration]()
	}
	ttl := c.TTLSeconds
	if ttl <= 0 {
		ttl = DefaultCacheTTLSeconds
	}
	return mo.Some(time.Duration(ttl) * time.Second)
}

// GetMaxEntries returns the cache capacity or default 4096.
func (c *CacheConfig) GetMaxEntries() int64 {
	if c.MaxEntries <= 0 {
		return DefaultCacheMaxEntries
	}
	return c.MaxEntries
}
