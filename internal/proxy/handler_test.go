package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollenlabs/pollen-relay/internal/cache"
	"github.com/pollenlabs/pollen-relay/internal/config"
	"github.com/pollenlabs/pollen-relay/internal/health"
	"github.com/pollenlabs/pollen-relay/internal/keypool"
	"github.com/pollenlabs/pollen-relay/internal/ratelimit"
	"github.com/pollenlabs/pollen-relay/internal/relay"
	"github.com/pollenlabs/pollen-relay/internal/upstream"
)

func newHandlerFixture(t *testing.T, upstreamURL string, rejectCallerKey bool) (*PromptHandler, *keypool.Manager) {
	t.Helper()

	store, err := keypool.NewStore([]string{"sk-one", "sk-two"}, keypool.StoreConfig{
		CooldownBase:         time.Second,
		CooldownCap:          time.Minute,
		DefaultCooldown:      time.Minute,
		TransientThreshold:   3,
		AuthFailureThreshold: 3,
	})
	require.NoError(t, err)

	tracker, err := ratelimit.NewTracker(ratelimit.Config{Window: time.Hour, MaxRequests: 100})
	require.NoError(t, err)

	policy, err := keypool.NewPolicy("")
	require.NoError(t, err)

	pool := keypool.NewManager(store, tracker, policy, keypool.ManagerConfig{})

	client, err := upstream.NewClient(upstream.Config{BaseURL: upstreamURL, Timeout: 5 * time.Second}, zerolog.Nop())
	require.NoError(t, err)

	logger := zerolog.Nop()
	breaker := health.NewBreaker("upstream", health.Config{}, &logger)
	rly := relay.New(pool, client, breaker, cache.NewNoop(), nil, relay.Config{RetryBudget: 1}, zerolog.Nop())

	runtime := config.NewRuntime(&config.Config{
		Server: config.ServerConfig{RejectCallerKey: rejectCallerKey},
	})

	return NewPromptHandler(rly, pool, runtime, nil, zerolog.Nop()), pool
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var envelope Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestPromptHandler_POST(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tiny", r.URL.Query().Get("model"))
		//nolint:errcheck // test server write
		w.Write([]byte("hi there"))
	}))
	defer server.Close()

	handler, _ := newHandlerFixture(t, server.URL, false)

	req := httptest.NewRequest(http.MethodPost, "/prompt",
		strings.NewReader(`{"text": "hello", "model": "tiny"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, StatusSuccess, envelope.Status)

	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi there", data["response"])
}

func TestPromptHandler_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		//nolint:errcheck // test server write
		w.Write([]byte("query response"))
	}))
	defer server.Close()

	handler, _ := newHandlerFixture(t, server.URL, false)

	req := httptest.NewRequest(http.MethodGet, "/prompt?text=hello", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, StatusSuccess, envelope.Status)
}

func TestPromptHandler_EmptyPromptReturnsWelcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no upstream call expected for an empty prompt")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	handler, _ := newHandlerFixture(t, server.URL, false)

	for _, body := range []string{`{}`, `{"text": ""}`, `{"text": "   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/prompt", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "body %s", body)
		envelope := decodeEnvelope(t, rec)
		assert.Equal(t, WelcomeMessage, envelope.Message)
	}
}

func TestPromptHandler_CallerKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotContains(t, r.Header.Get("Authorization"), "sk-caller",
			"caller-supplied key must never reach the upstream")
		//nolint:errcheck // test server write
		w.Write([]byte("pooled key used"))
	}))
	defer server.Close()

	t.Run("rejected when configured", func(t *testing.T) {
		handler, _ := newHandlerFixture(t, server.URL, true)

		req := httptest.NewRequest(http.MethodPost, "/prompt",
			strings.NewReader(`{"text": "hello", "api_key": "sk-caller"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		envelope := decodeEnvelope(t, rec)
		assert.Equal(t, StatusError, envelope.Status)
	})

	t.Run("ignored by default", func(t *testing.T) {
		handler, _ := newHandlerFixture(t, server.URL, false)

		req := httptest.NewRequest(http.MethodPost, "/prompt",
			strings.NewReader(`{"text": "hello", "api_key": "sk-caller"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("query param api_key rejected too", func(t *testing.T) {
		handler, _ := newHandlerFixture(t, server.URL, true)

		req := httptest.NewRequest(http.MethodGet, "/prompt?text=hello&api_key=sk-caller", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPromptHandler_InvalidBody(t *testing.T) {
	handler, _ := newHandlerFixture(t, "http://localhost:1", false)

	req := httptest.NewRequest(http.MethodPost, "/prompt", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromptHandler_UnavailableIsUniform(t *testing.T) {
	// Whatever went wrong upstream, the caller sees one generic 503.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	handler, pool := newHandlerFixture(t, server.URL, false)

	req := httptest.NewRequest(http.MethodPost, "/prompt", strings.NewReader(`{"text": "hello"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, StatusError, envelope.Status)
	assert.Equal(t, "service temporarily unavailable", envelope.Message)
	assert.NotContains(t, rec.Body.String(), "429", "no upstream detail may leak")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Both keys went into cooldown from the two attempts.
	assert.Equal(t, 2, pool.Stats().CoolingDown)
}

func TestPromptHandler_MethodNotAllowed(t *testing.T) {
	handler, _ := newHandlerFixture(t, "http://localhost:1", false)

	req := httptest.NewRequest(http.MethodDelete, "/prompt", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
