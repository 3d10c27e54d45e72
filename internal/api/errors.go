package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
	"github.com/nerrad567/gray-logic-tracker/internal/fritz"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeRouterFailed   = "router_failed"
	ErrCodeAuthRequired   = "auth_required"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeTrackerError maps an integration error to a response.
func writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrRouterNotFound), errors.Is(err, tracker.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, tracker.ErrRouterNotReady):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, tracker.ErrNoIPAddress), errors.Is(err, coordinator.ErrCycleInProgress):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, coordinator.ErrAuthRequired), errors.Is(err, fritz.ErrAuthFailed):
		writeError(w, http.StatusBadGateway, ErrCodeAuthRequired, "router rejected the configured credentials")
	case errors.Is(err, tracker.ErrServiceFailed), errors.Is(err, coordinator.ErrUpdateFailed):
		writeError(w, http.StatusBadGateway, ErrCodeRouterFailed, err.Error())
	default:
		writeInternalError(w, "internal server error")
	}
}
