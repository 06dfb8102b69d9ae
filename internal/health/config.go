package health

import "time"

// Default configuration values.
const (
	DefaultFailureThreshold = 5     // consecutive failures to open circuit
	DefaultOpenDurationMS   = 30000 // 30 seconds before half-open
	DefaultHalfOpenProbes   = 3     // probes allowed in half-open state
)

// Config defines circuit breaker behavior.
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int

	// OpenDuration is how long the circuit stays open before half-open.
	OpenDuration time.Duration

	// HalfOpenProbes is the number of probe requests allowed in half-open
	// state. All probes succeeding closes the circuit; any failure reopens.
	HalfOpenProbes int
}

// GetFailureThreshold returns the configured failure threshold or default 5.
func (c *Config) GetFailureThreshold() int {
	if c.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

// GetOpenDuration returns the open duration or default 30s.
func (c *Config) GetOpenDuration() time.Duration {
	if c.OpenDuration <= 0 {
		return DefaultOpenDurationMS * time.Millisecond
	}
	return c.OpenDuration
}

// GetHalfOpenProbes returns the configured half-open probes or default 3.
func (c *Config) GetHalfOpenProbes() int {
	if c.HalfOpenProbes <= 0 {
		return DefaultHalfOpenProbes
	}
	return c.HalfOpenProbes
}
