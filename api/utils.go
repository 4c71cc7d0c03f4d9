package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/tally"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps tally errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tally.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, tally.ErrForbidden), errors.Is(err, tally.ErrNotMember):
		return http.StatusForbidden
	case tally.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, tally.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, tally.ErrInvalidGraph):
		return http.StatusInternalServerError
	case errors.Is(err, tally.ErrInvalidInput), tally.IsEngineError(err), errors.Is(err, tally.ErrSelfSettlement):
		return http.StatusUnprocessableEntity
	case tally.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
