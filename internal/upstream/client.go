// Package upstream implements the forwarder: it performs the call to the
// downstream generative service with an acquired key and classifies the
// outcome for the pool manager.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pollenlabs/pollen-relay/internal/keypool"
)

// maxResponseBytes caps how much of an upstream response body is read.
const maxResponseBytes = 4 << 20 // 4 MiB

// ErrInvalidBaseURL is returned when the configured base URL cannot be parsed.
var ErrInvalidBaseURL = errors.New("upstream: invalid base URL")

// Config defines the upstream endpoint.
type Config struct {
	// BaseURL is the prompt endpoint; the prompt text is appended as a
	// path segment (text.pollinations.ai style).
	BaseURL string

	// Timeout bounds a single round trip.
	Timeout time.Duration
}

// Result is a classified upstream response.
type Result struct {
	// Outcome is the classification the pool manager consumes.
	Outcome keypool.Outcome

	// StatusCode is the upstream HTTP status, 0 on transport failure.
	StatusCode int

	// Body is the response text for successful calls, nil otherwise.
	Body []byte
}

// Client performs upstream calls with a pooled credential attached.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	logger  zerolog.Logger
}

// NewClient creates a Client for the given endpoint.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: base,
		logger:  logger.With().Str("component", "upstream").Logger(),
	}, nil
}

// Forward issues the upstream call with the given credential and prompt.
// The returned Result always carries a classification, including on
// transport failure; the error is returned alongside for logging.
func (c *Client) Forward(ctx context.Context, secret, prompt string, params url.Values) (*Result, error) {
	req, err := c.buildRequest(ctx, secret, prompt, params)
	if err != nil {
		return &Result{Outcome: transientOutcome()}, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// Network failure, timeout, or caller cancellation: the key's
		// state must still reflect that the attempt happened.
		c.logger.Warn().
			Err(err).
			Dur("elapsed", time.Since(start)).
			Msg("upstream request failed")
		return &Result{Outcome: transientOutcome()}, err
	}
	defer func() {
		//nolint:errcheck // nothing to do about a close error on a read body
		resp.Body.Close()
	}()

	result := &Result{
		StatusCode: resp.StatusCode,
		Outcome:    Classify(resp.StatusCode, resp.Header),
	}

	if result.Outcome.Class == keypool.ClassSuccess {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to read upstream response body")
			return &Result{Outcome: transientOutcome()}, err
		}
		result.Body = body
	} else {
		// Drain so the connection can be reused.
		//nolint:errcheck // best-effort drain
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("class", string(result.Outcome.Class)).
		Dur("elapsed", time.Since(start)).
		Msg("upstream request completed")

	return result, nil
}

func (c *Client) buildRequest(ctx context.Context, secret, prompt string, params url.Values) (*http.Request, error) {
	u := c.baseURL.JoinPath(prompt)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Accept", "text/plain")
	return req, nil
}
