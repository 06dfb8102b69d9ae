// Package health provides the upstream circuit breaker for pollen-relay.
//
// The breaker prevents hammering a failing upstream: after a run of
// consecutive transport-level failures the circuit opens and the relay fails
// fast, allowing the upstream time to recover before probe requests flow
// again (CLOSED -> OPEN -> HALF-OPEN -> CLOSED).
package health

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the breaker is open and rejecting requests.
var ErrCircuitOpen = errors.New("health: circuit breaker is open")

// State represents the circuit breaker state.
type State = gobreaker.State

// Circuit breaker state constants.
const (
	StateClosed   = gobreaker.StateClosed
	StateOpen     = gobreaker.StateOpen
	StateHalfOpen = gobreaker.StateHalfOpen
)

// Breaker wraps sony/gobreaker's TwoStepCircuitBreaker for the upstream
// service. Allow hands back a done callback so the failure report can happen
// after the network call, outside any pool lock.
type Breaker struct {
	cb   *gobreaker.TwoStepCircuitBreaker[struct{}]
	name string
}

// NewBreaker creates a Breaker with the given configuration.
func NewBreaker(name string, cfg Config, logger *zerolog.Logger) *Breaker {
	failureThreshold := cfg.GetFailureThreshold()

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.GetHalfOpenProbes()), //nolint:gosec // getter clamps to positive
		Timeout:     cfg.GetOpenDuration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failureThreshold) //nolint:gosec // getter clamps to positive
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger == nil {
				return
			}
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.
				Str("upstream", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Breaker{
		cb:   gobreaker.NewTwoStepCircuitBreaker[struct{}](settings),
		name: name,
	}
}

// Allow checks if a request may pass through the breaker.
// Callers must invoke the returned done callback exactly once with the
// request's error (nil on success).
func (b *Breaker) Allow() (done func(err error), err error) {
	d, err := b.cb.Allow()
	if err != nil {
		return nil, ErrCircuitOpen
	}
	return d, nil
}

// State returns the current circuit breaker state.
func (b *Breaker) State() State {
	return b.cb.State()
}

// Name returns the breaker's name.
func (b *Breaker) Name() string {
	return b.name
}
