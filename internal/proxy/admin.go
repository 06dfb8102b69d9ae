package proxy

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pollenlabs/pollen-relay/internal/keypool"
)

// AdminHandler serves the operator endpoints: key state inspection and
// manual enable/disable. Key IDs are hashes; secrets never appear here.
type AdminHandler struct {
	pool   *keypool.Manager
	logger zerolog.Logger
}

// NewAdminHandler creates an AdminHandler over the pool manager.
func NewAdminHandler(pool *keypool.Manager, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		pool:   pool,
		logger: logger.With().Str("component", "admin").Logger(),
	}
}

// keyView is the redacted per-key state returned by ListKeys.
type keyView struct {
	ID                  string `json:"id"`
	Status              string `json:"status"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastUsedAt          string `json:"last_used_at,omitempty"`
	Remaining           int    `json:"remaining"`
	InUse               bool   `json:"in_use"`
}

type poolView struct {
	Stats keypool.PoolStats `json:"stats"`
	Keys  []keyView         `json:"keys"`
}

// ListKeys handles GET /admin/keys.
func (h *AdminHandler) ListKeys(w http.ResponseWriter, _ *http.Request) {
	snap := h.pool.Snapshot()

	keys := make([]keyView, 0, len(snap.Keys))
	for _, k := range snap.Keys {
		view := keyView{
			ID:                  k.ID,
			Status:              string(k.Status),
			ConsecutiveFailures: k.ConsecutiveFailures,
			Remaining:           k.Remaining,
			InUse:               k.InUse,
		}
		if !k.LastUsedAt.IsZero() {
			view.LastUsedAt = k.LastUsedAt.UTC().Format(time.RFC3339)
		}
		keys = append(keys, view)
	}

	WriteSuccess(w, "", poolView{Stats: h.pool.Stats(), Keys: keys})
}

// EnableKey handles POST /admin/keys/{id}/enable.
func (h *AdminHandler) EnableKey(w http.ResponseWriter, r *http.Request) {
	h.setKeyState(w, r, true)
}

// DisableKey handles POST /admin/keys/{id}/disable.
func (h *AdminHandler) DisableKey(w http.ResponseWriter, r *http.Request) {
	h.setKeyState(w, r, false)
}

func (h *AdminHandler) setKeyState(w http.ResponseWriter, r *http.Request, enable bool) {
	keyID := r.PathValue("id")
	if keyID == "" {
		WriteError(w, http.StatusBadRequest, "missing key id")
		return
	}

	var err error
	if enable {
		err = h.pool.Enable(keyID)
	} else {
		err = h.pool.Disable(keyID)
	}

	if err != nil {
		if errors.Is(err, keypool.ErrKeyNotFound) {
			WriteError(w, http.StatusNotFound, "unknown key id")
			return
		}
		h.logger.Error().Str("key_id", keyID).Err(err).Msg("failed to update key state")
		WriteError(w, http.StatusInternalServerError, "failed to update key state")
		return
	}

	action := "disabled"
	if enable {
		action = "enabled"
	}
	WriteSuccess(w, "key "+action, map[string]string{"id": keyID})
}
