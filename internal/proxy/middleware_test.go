package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminAuthMiddleware(t *testing.T) {
	handler := AdminAuthMiddleware("secret-token")(okHandler())

	t.Run("accepts the correct token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
		req.Header.Set("x-admin-token", "secret-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects a wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
		req.Header.Set("x-admin-token", "wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("hides admin surface when no token configured", func(t *testing.T) {
		unconfigured := AdminAuthMiddleware("")(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
		req.Header.Set("x-admin-token", "")
		rec := httptest.NewRecorder()
		unconfigured.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("generates an id when absent", func(t *testing.T) {
		var seen string
		inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		})
		handler := RequestIDMiddleware()(inner)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagates a provided id", func(t *testing.T) {
		handler := RequestIDMiddleware()(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	})
}

func TestConcurrencyLimiter(t *testing.T) {
	t.Run("caps in-flight requests", func(t *testing.T) {
		limiter := NewConcurrencyLimiter(2)

		require.True(t, limiter.TryAcquire())
		require.True(t, limiter.TryAcquire())
		assert.False(t, limiter.TryAcquire())

		limiter.Release()
		assert.True(t, limiter.TryAcquire())
	})

	t.Run("zero limit means unlimited", func(t *testing.T) {
		limiter := NewConcurrencyLimiter(0)
		for i := 0; i < 100; i++ {
			require.True(t, limiter.TryAcquire())
		}
		assert.Equal(t, int64(100), limiter.CurrentInFlight())
	})

	t.Run("limit can be raised live", func(t *testing.T) {
		limiter := NewConcurrencyLimiter(1)
		require.True(t, limiter.TryAcquire())
		require.False(t, limiter.TryAcquire())

		limiter.SetLimit(2)
		assert.True(t, limiter.TryAcquire())
	})

	t.Run("is race safe", func(t *testing.T) {
		limiter := NewConcurrencyLimiter(10)
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			acquired int
		)
		for g := 0; g < 50; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.TryAcquire() {
					mu.Lock()
					acquired++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.LessOrEqual(t, acquired, 10)
		assert.Equal(t, int64(acquired), limiter.CurrentInFlight())
	})
}

func TestConcurrencyMiddleware(t *testing.T) {
	limiter := NewConcurrencyLimiter(1)
	require.True(t, limiter.TryAcquire()) // hold the only slot

	handler := ConcurrencyMiddleware(limiter)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/prompt", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	limiter.Release()
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaxBodyBytesMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := http.MaxBytesReader(w, r.Body, 1<<20).Read(make([]byte, 64))
		if err != nil && IsBodyTooLargeError(err) {
			WriteBodyTooLargeError(w)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := MaxBodyBytesMiddleware(func() int64 { return 10 })(inner)

	req := httptest.NewRequest(http.MethodPost, "/prompt", strings.NewReader(strings.Repeat("x", 64)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestThrottleMiddleware(t *testing.T) {
	t.Run("nil limiter passes through", func(t *testing.T) {
		handler := ThrottleMiddleware(nil)(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects once the burst is spent", func(t *testing.T) {
		handler := ThrottleMiddleware(rate.NewLimiter(rate.Limit(0.001), 2))(okHandler())

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}
