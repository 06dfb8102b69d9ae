package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/pollenlabs/pollen-relay/internal/config"
	"github.com/pollenlabs/pollen-relay/internal/keypool"
	"github.com/pollenlabs/pollen-relay/internal/relay"
)

// generation parameters forwarded to the upstream as query params.
var forwardedParams = []string{"model", "system", "seed", "json"}

// RequestRecorder counts completed inbound requests for metrics.
type RequestRecorder interface {
	RequestServed(result string)
}

// PromptHandler serves the prompt endpoints. It extracts the prompt text and
// generation parameters, hands them to the relay, and maps the outcome to the
// response envelope. It never exposes pool internals to callers.
type PromptHandler struct {
	relay    *relay.Relay
	pool     *keypool.Manager
	cfg      config.RuntimeConfig
	recorder RequestRecorder
	logger   zerolog.Logger
}

// NewPromptHandler creates a PromptHandler.
func NewPromptHandler(rly *relay.Relay, pool *keypool.Manager, cfg config.RuntimeConfig, recorder RequestRecorder, logger zerolog.Logger) *PromptHandler {
	return &PromptHandler{
		relay:    rly,
		pool:     pool,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.With().Str("component", "handler").Logger(),
	}
}

// promptRequest is the normalized inbound request regardless of HTTP method.
type promptRequest struct {
	text         string
	params       url.Values
	hasCallerKey bool
	raw          []byte
}

func (h *PromptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		req promptRequest
		err error
	)

	switch r.Method {
	case http.MethodGet:
		req = parseQueryPrompt(r)
	case http.MethodPost:
		req, err = parseBodyPrompt(r)
		if err != nil {
			if IsBodyTooLargeError(err) {
				WriteBodyTooLargeError(w)
			} else {
				WriteError(w, http.StatusBadRequest, "invalid request body")
			}
			h.served("rejected")
			return
		}
	default:
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		h.served("rejected")
		return
	}

	// Callers must not smuggle their own upstream credential through the
	// relay; the whole point is that the pool owns the keys.
	if req.hasCallerKey {
		if h.cfg.Get().Server.RejectCallerKey {
			WriteError(w, http.StatusBadRequest, "api_key must not be supplied; the relay manages credentials")
			h.served("rejected")
			return
		}
		zerolog.Ctx(r.Context()).Debug().
			Str("body_preview", bodyPreview(req.raw)).
			Msg("ignoring caller-supplied api_key")
	}

	if strings.TrimSpace(req.text) == "" {
		WriteSuccess(w, WelcomeMessage, nil)
		h.served("welcome")
		return
	}

	resp, err := h.relay.Prompt(r.Context(), req.text, req.params)
	if err != nil {
		if errors.Is(err, relay.ErrUnavailable) {
			WriteUnavailable(w, h.pool.RetryAfterHint())
			h.served("unavailable")
			return
		}
		// Context cancellation: the caller is gone, nothing useful to write.
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("prompt request aborted")
		h.served("aborted")
		return
	}

	result := "ok"
	if resp.Cached {
		result = "cached"
	}
	WriteSuccess(w, "", promptData{
		Response: string(resp.Body),
		Cached:   resp.Cached,
	})
	h.served(result)
}

type promptData struct {
	Response string `json:"response"`
	Cached   bool   `json:"cached,omitempty"`
}

func (h *PromptHandler) served(result string) {
	if h.recorder != nil {
		h.recorder.RequestServed(result)
	}
}

// parseQueryPrompt normalizes a GET request: ?text=...&model=...&seed=...
func parseQueryPrompt(r *http.Request) promptRequest {
	query := r.URL.Query()

	params := url.Values{}
	for _, name := range forwardedParams {
		if v := query.Get(name); v != "" {
			params.Set(name, v)
		}
	}

	return promptRequest{
		text:         query.Get("text"),
		params:       params,
		hasCallerKey: query.Get("api_key") != "",
	}
}

// parseBodyPrompt normalizes a POST request with a JSON body.
// "text" is the prompt; "prompt" is accepted as an alias.
func parseBodyPrompt(r *http.Request) (promptRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return promptRequest{}, err
	}

	if len(body) > 0 && !gjson.ValidBytes(body) {
		return promptRequest{}, errors.New("proxy: request body is not valid JSON")
	}

	text := gjson.GetBytes(body, "text")
	if !text.Exists() {
		text = gjson.GetBytes(body, "prompt")
	}

	params := url.Values{}
	for _, name := range forwardedParams {
		if field := gjson.GetBytes(body, name); field.Exists() {
			params.Set(name, field.String())
		}
	}

	return promptRequest{
		text:         text.String(),
		params:       params,
		hasCallerKey: gjson.GetBytes(body, "api_key").Exists(),
		raw:          body,
	}, nil
}

// bodyPreview returns a short preview of the request body for debug logs,
// with credential fields removed rather than redacted in place.
func bodyPreview(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	scrubbed, err := sjson.DeleteBytes(body, "api_key")
	if err != nil {
		return ""
	}
	preview := string(scrubbed)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return preview
}
