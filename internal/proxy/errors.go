// Package proxy implements the HTTP server for pollen-relay.
package proxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Response statuses used in the envelope.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WelcomeMessage is returned for empty prompts instead of an upstream call.
const WelcomeMessage = "Welcome to pollen-relay! Send a prompt to get a generated response. " +
	"POST /prompt with {\"text\": \"...\"} or GET /prompt?text=..."

// Envelope is the uniform response body for every endpoint.
type Envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WriteSuccess writes a 200 envelope with the given data payload.
func WriteSuccess(w http.ResponseWriter, message string, data any) {
	writeEnvelope(w, http.StatusOK, Envelope{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// WriteError writes an error envelope with the given status code.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	writeEnvelope(w, statusCode, Envelope{
		Status:  StatusError,
		Message: message,
	})
}

// WriteUnavailable writes the uniform 503 returned whenever the relay cannot
// produce a response. Callers get the same body regardless of whether the
// pool was exhausted, the breaker was open, or every retry failed; detail
// stays in logs and the admin surface. A positive retryAfter becomes a
// Retry-After header.
func WriteUnavailable(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		seconds := int(retryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	WriteError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
}

// IsBodyTooLargeError checks if an error is from http.MaxBytesReader.
func IsBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

// WriteBodyTooLargeError writes a 413 Request Entity Too Large response.
func WriteBodyTooLargeError(w http.ResponseWriter) {
	WriteError(w, http.StatusRequestEntityTooLarge, "request body exceeds the maximum allowed size")
}

func writeEnvelope(w http.ResponseWriter, statusCode int, envelope Envelope) {
	envelope.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
