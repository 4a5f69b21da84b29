package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/ride-marketplace/internal/identity"
	"github.com/example/ride-marketplace/internal/lifecycle"
	"github.com/example/ride-marketplace/internal/payments"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the operation error taxonomy onto HTTP status codes.
// Conflict-class failures (the entity exists but its state rejects the
// operation) get 409 so callers can tell them from malformed input.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrValidation),
		errors.Is(err, identity.ErrValidation),
		errors.Is(err, payments.ErrValidation),
		errors.Is(err, lifecycle.ErrUnmatchedDriver):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, identity.ErrUnauthenticated):
		s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrForbidden):
		s.writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrNotFound),
		errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, payments.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrDuplicateApplication),
		errors.Is(err, lifecycle.ErrAlreadyCompleted),
		errors.Is(err, identity.ErrDuplicateEmail):
		s.writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		s.logger.Error("internal error", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}
