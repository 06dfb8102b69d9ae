// Package relay orchestrates a prompt request end to end: cache lookup, key
// acquisition, the upstream call, outcome reporting, and retry with a
// different key when the first one fails.
package relay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pollenlabs/pollen-relay/internal/cache"
	"github.com/pollenlabs/pollen-relay/internal/health"
	"github.com/pollenlabs/pollen-relay/internal/keypool"
	"github.com/pollenlabs/pollen-relay/internal/upstream"
)

// ErrUnavailable is the single error the relay surfaces when it cannot
// produce a response. Callers never learn which key failed or why; per-key
// detail stays in logs and the admin surface.
var ErrUnavailable = errors.New("relay: service temporarily unavailable")

// Config tunes the relay.
type Config struct {
	// RetryBudget is how many additional keys the relay may try after the
	// first attempt fails with a retryable outcome.
	RetryBudget int
}

// Response is a completed relay result.
type Response struct {
	Body   []byte
	Cached bool
}

// Recorder receives relay outcomes for metrics. It is satisfied by
// metrics.Metrics; a nil Recorder disables recording.
type Recorder interface {
	ObserveUpstream(class keypool.Class, elapsed time.Duration)
	CacheHit()
	CacheMiss()
}

// Relay coordinates the pool manager, circuit breaker, upstream client, and
// response cache.
type Relay struct {
	pool     *keypool.Manager
	client   *upstream.Client
	breaker  *health.Breaker
	cache    cache.Cache
	recorder Recorder
	cfg      Config
	logger   zerolog.Logger
}

// New creates a Relay.
func New(pool *keypool.Manager, client *upstream.Client, breaker *health.Breaker, responseCache cache.Cache, recorder Recorder, cfg Config, logger zerolog.Logger) *Relay {
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = 0
	}
	return &Relay{
		pool:     pool,
		client:   client,
		breaker:  breaker,
		cache:    responseCache,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.With().Str("component", "relay").Logger(),
	}
}

// Prompt relays a prompt to the upstream service using a pooled key.
//
// Per attempt: check the breaker, acquire a lease, call upstream outside any
// pool lock, then report the classified outcome. A failed attempt excludes
// its key from the next acquisition so the retry lands on a different key.
// When the budget is exhausted, or no key qualifies at all, the caller gets
// ErrUnavailable.
func (r *Relay) Prompt(ctx context.Context, prompt string, params url.Values) (*Response, error) {
	cacheKey := promptCacheKey(prompt, params)
	if body, err := r.cache.Get(cacheKey); err == nil {
		if r.recorder != nil {
			r.recorder.CacheHit()
		}
		r.logger.Debug().Msg("served prompt from cache")
		return &Response{Body: body, Cached: true}, nil
	}
	if r.recorder != nil {
		r.recorder.CacheMiss()
	}

	var failedKeys []string
	attempts := r.cfg.RetryBudget + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, keyID, err := r.attempt(ctx, prompt, params, failedKeys)
		if err != nil {
			if errors.Is(err, keypool.ErrNoKeyAvailable) || errors.Is(err, health.ErrCircuitOpen) {
				r.logger.Warn().
					Int("attempt", attempt+1).
					Err(err).
					Msg("no attempt possible")
				return nil, ErrUnavailable
			}
			// Transport-level failure: the outcome was already reported,
			// so just move on to the next key.
			failedKeys = append(failedKeys, keyID)
			continue
		}

		if result.Outcome.Class == keypool.ClassSuccess {
			r.cache.Set(cacheKey, result.Body, 0)
			return &Response{Body: result.Body}, nil
		}

		r.logger.Warn().
			Str("key_id", keyID).
			Int("status", result.StatusCode).
			Str("class", string(result.Outcome.Class)).
			Int("attempt", attempt+1).
			Msg("upstream attempt failed")
		failedKeys = append(failedKeys, keyID)
	}

	return nil, ErrUnavailable
}

// attempt performs one acquire/forward/report cycle. The key ID is returned
// even on error so the caller can exclude it from the next attempt.
func (r *Relay) attempt(ctx context.Context, prompt string, params url.Values, exclude []string) (*upstream.Result, string, error) {
	done, err := r.breaker.Allow()
	if err != nil {
		return nil, "", err
	}

	lease, err := r.pool.AcquireExcluding(exclude...)
	if err != nil {
		// The acquisition never reached the upstream; it must not count
		// against the breaker.
		done(nil)
		return nil, "", err
	}

	start := time.Now()
	result, callErr := r.client.Forward(ctx, lease.Secret(), prompt, params)
	elapsed := time.Since(start)
	r.pool.Report(lease, result.Outcome)

	// Only transport-level failures feed the breaker. An HTTP error
	// response means the upstream is alive; that is the pool's concern.
	if result.StatusCode == 0 {
		done(callErr)
	} else {
		done(nil)
	}

	if r.recorder != nil {
		r.recorder.ObserveUpstream(result.Outcome.Class, elapsed)
	}

	if callErr != nil {
		return nil, lease.KeyID, callErr
	}
	return result, lease.KeyID, nil
}

// promptCacheKey derives the cache key from the prompt and its parameters.
// Hashing keeps arbitrarily long prompts at a fixed key size.
func promptCacheKey(prompt string, params url.Values) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(params.Encode()))
	return hex.EncodeToString(h.Sum(nil))
}
