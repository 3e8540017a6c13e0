package handlers

import (
	"errors"
	"net/http"

	"sos-gateway/internal/alert"
	"sos-gateway/internal/database"
)

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, alert.ErrInvalidHazard):
		return http.StatusBadRequest
	case errors.Is(err, alert.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
