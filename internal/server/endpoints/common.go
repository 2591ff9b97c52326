package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackzampolin/promptbox/internal/calls"
	"github.com/jackzampolin/promptbox/internal/cards"
	"github.com/jackzampolin/promptbox/internal/chat"
	"github.com/jackzampolin/promptbox/internal/prompts"
	"github.com/jackzampolin/promptbox/internal/sessions"
)

// ErrorResponse is the JSON body for error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prompts.ErrNotFound),
		errors.Is(err, cards.ErrNotFound),
		errors.Is(err, sessions.ErrNotFound),
		errors.Is(err, calls.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, prompts.ErrDuplicateName),
		errors.Is(err, cards.ErrDuplicateName):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, prompts.ErrMissingVariables):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, cards.ErrNoInstructions),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrNotUserTurn):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// unmarshalJSON exists so CLI commands can sanity-check a file before
// shipping it to the server.
func unmarshalJSON(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

// decodeBody decodes a JSON request body, replying 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
