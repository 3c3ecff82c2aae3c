package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/upnext/internal/app/filter"
	"github.com/osa030/upnext/internal/app/playback"
	"github.com/osa030/upnext/internal/app/queue"
	"github.com/osa030/upnext/internal/app/session"
	"github.com/osa030/upnext/internal/domain/track"
)

// ErrorMessage is the body of every non-2xx response.
type ErrorMessage struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Msg("api: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		switch status {
		case http.StatusNotFound:
			message = "Page not found"
		case http.StatusMethodNotAllowed:
			message = "Method not allowed"
		case http.StatusUnauthorized:
			message = "Unauthorized"
		case http.StatusServiceUnavailable:
			message = "Service unavailable"
		case http.StatusBadRequest:
			message = "Bad request"
		case http.StatusConflict:
			message = "Conflict"
		default:
			message = "Internal error"
		}
	}
	writeJSON(w, status, ErrorMessage{StatusCode: status, Message: message})
}

// writeErr maps a domain error onto its HTTP status.
func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zlog.Error().Err(err).Msg("api: request failed")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrQueueEmpty),
		errors.Is(err, playback.ErrNoTrack),
		errors.Is(err, playback.ErrNoDuration):
		return http.StatusConflict
	case filter.IsRejected(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, playback.ErrInvalidSeek), errors.Is(err, track.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
