package config

import (
	"net"
	"net/url"
	"strings"
)

// Valid key selection strategies.
var validPoolStrategies = map[string]bool{
	"":             true, // empty defaults to least_recent
	"least_recent": true,
	"random":       true,
}

// Valid rate limit algorithms.
var validRateLimitAlgorithms = map[string]bool{
	"":             true, // empty defaults to fixed_window
	"fixed_window": true,
	"token_bucket": true,
}

// Valid logging levels.
var validLogLevels = map[string]bool{
	"":         true, // empty defaults to info
	LevelDebug: true,
	LevelInfo:  true,
	LevelWarn:  true,
	LevelError: true,
}

// Valid logging formats.
var validLogFormats = map[string]bool{
	"":        true, // empty auto-detects terminal
	"json":    true,
	"console": true,
	"pretty":  true,
}

// Validate checks the configuration for errors.
// It validates required fields, valid values, and cross-field constraints.
// Returns a ValidationError containing all errors found, or nil if valid.
func (c *Config) Validate() error {
	errs := &ValidationError{}

	validateServer(&c.Server, errs)
	validateUpstream(&c.Upstream, errs)
	validatePool(&c.Pool, errs)
	validateRateLimit(&c.RateLimit, errs)
	validateLogging(&c.Logging, errs)

	return errs.ToError()
}

func validateServer(s *ServerConfig, errs *ValidationError) {
	if s.Listen != "" {
		if _, _, err := net.SplitHostPort(s.Listen); err != nil {
			errs.Addf("server.listen %q is not a valid host:port: %v", s.Listen, err)
		}
	}
	if s.MaxConcurrent < 0 {
		errs.Addf("server.max_concurrent must be >= 0, got %d", s.MaxConcurrent)
	}
	if s.InboundRPS < 0 {
		errs.Addf("server.inbound_rps must be >= 0, got %v", s.InboundRPS)
	}
}

func validateUpstream(u *UpstreamConfig, errs *ValidationError) {
	if u.BaseURL != "" {
		parsed, err := url.Parse(u.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs.Addf("upstream.base_url %q is not an absolute URL", u.BaseURL)
		}
	}
	if u.RetryBudget != nil && *u.RetryBudget < 0 {
		errs.Addf("upstream.retry_budget must be >= 0, got %d", *u.RetryBudget)
	}
}

func validatePool(p *PoolConfig, errs *ValidationError) {
	if len(p.Keys) == 0 {
		errs.Addf("pool.keys must contain at least one key")
	}

	seen := make(map[string]bool, len(p.Keys))
	for i, key := range p.Keys {
		secret := strings.TrimSpace(key.Secret)
		if secret == "" {
			errs.Addf("pool.keys[%d].secret is empty", i)
			continue
		}
		if seen[secret] {
			errs.Addf("pool.keys[%d].secret duplicates an earlier key", i)
		}
		seen[secret] = true
	}

	if !validPoolStrategies[p.Strategy] {
		errs.Addf("pool.strategy %q is not a valid strategy", p.Strategy)
	}
	if p.LeaseTimeoutMS < 0 {
		errs.Addf("pool.lease_timeout_ms must be >= 0, got %d", p.LeaseTimeoutMS)
	}
	if p.CooldownCapMS > 0 && p.CooldownBaseMS > p.CooldownCapMS {
		errs.Addf("pool.cooldown_base_ms %d exceeds cooldown_cap_ms %d",
			p.CooldownBaseMS, p.CooldownCapMS)
	}
}

func validateRateLimit(r *RateLimitConfig, errs *ValidationError) {
	if !validRateLimitAlgorithms[r.Algorithm] {
		errs.Addf("ratelimit.algorithm %q is not a valid algorithm", r.Algorithm)
	}
	if r.WindowMS < 0 {
		errs.Addf("ratelimit.window_ms must be >= 0 (0 uses the default), got %d", r.WindowMS)
	}
	if r.MaxRequests < 0 {
		errs.Addf("ratelimit.max_requests must be >= 0 (0 uses the default), got %d", r.MaxRequests)
	}
}

func validateLogging(l *LoggingConfig, errs *ValidationError) {
	if !validLogLevels[l.Level] {
		errs.Addf("logging.level %q is not a valid level", l.Level)
	}
	if !validLogFormats[l.Format] {
		errs.Addf("logging.format %q is not a valid format", l.Format)
	}
}
