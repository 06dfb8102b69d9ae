package proxy

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RequestIDMiddleware adds X-Request-ID header and a request-scoped logger
// to the context.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			requestID := request.Header.Get("X-Request-ID")
			ctx := AddRequestID(request.Context(), requestID)

			if requestID == "" {
				requestID = GetRequestID(ctx)
			}
			writer.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// AdminAuthMiddleware guards admin endpoints via the x-admin-token header.
// Uses constant-time comparison to prevent timing attacks; the token is
// pre-hashed at middleware creation so nothing per-request touches the raw
// secret.
func AdminAuthMiddleware(adminToken string) func(http.Handler) http.Handler {
	expectedHash := sha256.Sum256([]byte(adminToken))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if adminToken == "" {
				zerolog.Ctx(request.Context()).Warn().Msg("admin endpoint hit with no admin token configured")
				WriteError(writer, http.StatusNotFound, "not found")
				return
			}

			provided := request.Header.Get("x-admin-token")
			if provided == "" {
				failAuth(writer, request, "missing x-admin-token header")
				return
			}

			providedHash := sha256.Sum256([]byte(provided))
			if subtle.ConstantTimeCompare(providedHash[:], expectedHash[:]) != 1 {
				failAuth(writer, request, "invalid admin token")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

func failAuth(writer http.ResponseWriter, request *http.Request, reason string) {
	zerolog.Ctx(request.Context()).Warn().Msg("authentication failed: " + reason)
	WriteError(writer, http.StatusUnauthorized, reason)
}

// LoggingMiddleware logs each request with method, path, status, and duration.
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: writer, statusCode: http.StatusOK}

			requestID := GetRequestID(request.Context())
			shortID := requestID
			if len(shortID) > 8 {
				shortID = shortID[:8]
			}

			logger := zerolog.Ctx(request.Context()).With().
				Str("method", request.Method).
				Str("path", request.URL.Path).
				Str("req_id", shortID).
				Logger()

			logger.Info().Msgf("%s %s", request.Method, request.URL.Path)

			next.ServeHTTP(wrapped, request)

			duration := time.Since(start)
			completion := logger.With().
				Int("status", wrapped.statusCode).
				Str("duration", formatDuration(duration)).
				Logger()

			msg := http.StatusText(wrapped.statusCode)
			switch {
			case wrapped.statusCode >= 500:
				completion.Error().Msg(msg)
			case wrapped.statusCode >= 400:
				completion.Warn().Msg(msg)
			default:
				completion.Info().Msg(msg)
			}
		})
	}
}

// formatDuration formats duration in a human-readable form with microsecond
// precision. Dynamic units keep fast requests in µs and slow ones in ms/s.
func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	duration = duration.Round(time.Microsecond)
	switch {
	case duration < time.Millisecond:
		return fmt.Sprintf("%dµs", duration.Microseconds())
	case duration < time.Second:
		return fmt.Sprintf("%.2fms", float64(duration)/float64(time.Millisecond))
	case duration < time.Minute:
		return fmt.Sprintf("%.2fs", duration.Seconds())
	default:
		return duration.Truncate(time.Second).String()
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// ConcurrencyLimiter enforces a global maximum number of concurrent requests
// using an atomic counter. When the limit is reached, new requests receive
// 503 Service Unavailable.
type ConcurrencyLimiter struct {
	limit   atomic.Int64
	current atomic.Int64
}

// NewConcurrencyLimiter creates a limiter with the given max limit.
// A limit of 0 or negative means unlimited.
func NewConcurrencyLimiter(maxLimit int64) *ConcurrencyLimiter {
	limiter := &ConcurrencyLimiter{}
	limiter.limit.Store(maxLimit)
	return limiter
}

// SetLimit updates the concurrency limit.
func (l *ConcurrencyLimiter) SetLimit(maxLimit int64) {
	l.limit.Store(maxLimit)
}

// GetLimit returns the current configured limit.
func (l *ConcurrencyLimiter) GetLimit() int64 {
	return l.limit.Load()
}

// CurrentInFlight returns the current number of in-flight requests.
func (l *ConcurrencyLimiter) CurrentInFlight() int64 {
	return l.current.Load()
}

// TryAcquire attempts to acquire a slot for a request.
// Returns false when the limit is reached.
func (l *ConcurrencyLimiter) TryAcquire() bool {
	limit := l.limit.Load()
	if limit <= 0 {
		l.current.Add(1)
		return true
	}

	for {
		current := l.current.Load()
		if current >= limit {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release releases a slot after request completion.
// Must be called after a successful TryAcquire.
func (l *ConcurrencyLimiter) Release() {
	l.current.Add(-1)
}

// ConcurrencyMiddleware creates middleware that enforces a global concurrency
// limit via the provided ConcurrencyLimiter.
func ConcurrencyMiddleware(limiter *ConcurrencyLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if !limiter.TryAcquire() {
				zerolog.Ctx(request.Context()).Warn().
					Int64("limit", limiter.GetLimit()).
					Int64("current", limiter.CurrentInFlight()).
					Msg("request rejected: concurrency limit reached")
				WriteError(writer, http.StatusServiceUnavailable, "server is at maximum capacity, please retry later")
				return
			}
			defer limiter.Release()
			next.ServeHTTP(writer, request)
		})
	}
}

// MaxBodyBytesMiddleware limits request body size via http.MaxBytesReader.
// The limitProvider is called per-request to support hot reload.
func MaxBodyBytesMiddleware(limitProvider func() int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			limit := limitProvider()
			if limit > 0 && request.Body != nil {
				request.Body = http.MaxBytesReader(writer, request.Body, limit)
			}
			next.ServeHTTP(writer, request)
		})
	}
}

// ThrottleMiddleware applies a global inbound request rate limit, separate
// from per-key upstream accounting. Rejected requests get 429.
// A nil limiter disables throttling.
func ThrottleMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if !limiter.Allow() {
				zerolog.Ctx(request.Context()).Warn().Msg("request rejected: inbound rate limit")
				writer.Header().Set("Retry-After", "1")
				WriteError(writer, http.StatusTooManyRequests, "too many requests, please slow down")
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}
