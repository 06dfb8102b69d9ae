package proxy

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pollenlabs/pollen-relay/internal/config"
	"github.com/pollenlabs/pollen-relay/internal/version"
)

// Routes bundles everything SetupRoutes needs.
type Routes struct {
	Config  config.RuntimeConfig
	Prompt  *PromptHandler
	Admin   *AdminHandler
	Metrics http.Handler
	Logger  zerolog.Logger

	// Limits carries the live-adjustable admission limits. The config
	// reload path holds the same pointer and applies updated limits in
	// place. Nil builds fixed limits from the current config.
	Limits *InboundLimits
}

// SetupRoutes creates the HTTP handler with all routes configured.
// Routes:
//   - POST /prompt, GET /prompt - relay a prompt through the key pool
//   - GET / - welcome envelope
//   - GET /api - endpoint listing
//   - GET /health - liveness (no auth, no throttle)
//   - GET /metrics - Prometheus scrape endpoint
//   - GET /admin/keys, POST /admin/keys/{id}/enable|disable - operator
//     surface, guarded by x-admin-token
func SetupRoutes(r Routes) http.Handler {
	mux := http.NewServeMux()

	cfg := r.Config.Get()
	server := cfg.Server

	limits := r.Limits
	if limits == nil {
		limits = NewInboundLimits(server)
	}

	// Middleware order: request ID first so every later log carries it,
	// then logging, then the admission checks.
	chain := func(h http.Handler) http.Handler {
		h = MaxBodyBytesMiddleware(func() int64 { return r.Config.Get().Server.MaxBodyBytes })(h)
		h = ThrottleMiddleware(limits.Throttle)(h)
		h = ConcurrencyMiddleware(limits.Concurrency)(h)
		h = LoggingMiddleware()(h)
		h = RequestIDMiddleware()(h)
		return h
	}

	promptHandler := chain(r.Prompt)
	mux.Handle("POST /prompt", promptHandler)
	mux.Handle("GET /prompt", promptHandler)

	adminChain := func(h http.Handler) http.Handler {
		h = AdminAuthMiddleware(server.AdminToken)(h)
		h = LoggingMiddleware()(h)
		h = RequestIDMiddleware()(h)
		return h
	}
	mux.Handle("GET /admin/keys", adminChain(http.HandlerFunc(r.Admin.ListKeys)))
	mux.Handle("POST /admin/keys/{id}/enable", adminChain(http.HandlerFunc(r.Admin.EnableKey)))
	mux.Handle("POST /admin/keys/{id}/disable", adminChain(http.HandlerFunc(r.Admin.DisableKey)))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, WelcomeMessage, map[string]string{"version": version.Version})
	})

	mux.HandleFunc("GET /api", func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, "", map[string]string{
			"POST /prompt":                  "relay a prompt; body {\"text\": \"...\"}",
			"GET /prompt":                   "relay a prompt; ?text=...",
			"GET /health":                   "liveness",
			"GET /metrics":                  "prometheus metrics",
			"GET /admin/keys":               "key pool state (x-admin-token)",
			"POST /admin/keys/{id}/enable":  "re-enable a key (x-admin-token)",
			"POST /admin/keys/{id}/disable": "disable a key (x-admin-token)",
		})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is non-critical
		w.Write([]byte(`{"status":"ok"}`))
	})

	if r.Metrics != nil {
		mux.Handle("GET /metrics", r.Metrics)
	}

	return mux
}
