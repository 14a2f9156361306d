package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/coordinator"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/store"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
	"github.com/mcdev12/drawrelay/go/internal/turn"
)

var (
	errBadRequest  = errors.New("malformed request")
	errRateLimited = errors.New("too many requests")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByError = []struct {
	err    error
	status int
}{
	{room.ErrRoomNotFound, http.StatusNotFound},
	{room.ErrNotInRoom, http.StatusNotFound},
	{stroke.ErrRoomNotFound, http.StatusNotFound},
	{store.ErrNotFound, http.StatusNotFound},
	{room.ErrNotHost, http.StatusForbidden},
	{room.ErrRoomFull, http.StatusConflict},
	{room.ErrRoomAlreadyStarted, http.StatusConflict},
	{prompt.ErrPromptAlreadySubmitted, http.StatusConflict},
	{prompt.ErrNotSettingPrompts, http.StatusConflict},
	{stroke.ErrRoomNotPlaying, http.StatusConflict},
	{coordinator.ErrStaleTurn, http.StatusConflict},
	{turn.ErrNotPlaying, http.StatusConflict},
	{prompt.ErrInvalidPrompt, http.StatusBadRequest},
	{prompt.ErrNoCategory, http.StatusBadRequest},
	{stroke.ErrTooFewPoints, http.StatusBadRequest},
	{stroke.ErrTooManyPoints, http.StatusBadRequest},
	{stroke.ErrInvalidColor, http.StatusBadRequest},
	{stroke.ErrInvalidRequest, http.StatusBadRequest},
	{errBadRequest, http.StatusBadRequest},
	{errRateLimited, http.StatusTooManyRequests},
	{store.ErrUnavailable, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	if room.IsValidation(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// userMessage is the text shown to a player. Room errors carry their own
// messages; other rule violations read as their error text and anything
// unexpected reads as "try again".
func userMessage(err error) string {
	if room.IsValidation(err) {
		return room.UserMessage(err)
	}
	switch statusFor(err) {
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return room.UserMessage(err)
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ev := log.Debug()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request failed")

	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: userMessage(err)})
}
