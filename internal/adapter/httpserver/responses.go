package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/investor-api/internal/domain"
	"github.com/fairyhunter13/investor-api/internal/wideevent"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to an HTTP error envelope and records the
// failure on the active wide event so the emitted record carries the error
// descriptor while the caller still receives the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	retriable := false
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrRateLimited):
		code = http.StatusTooManyRequests
		codeStr = "RATE_LIMITED"
		retriable = true
	case errors.Is(err, domain.ErrUpstreamTimeout):
		code = http.StatusServiceUnavailable
		codeStr = "UPSTREAM_TIMEOUT"
		retriable = true
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		code = http.StatusServiceUnavailable
		codeStr = "UPSTREAM_RATE_LIMIT"
		retriable = true
	}
	wideevent.RecordError(r.Context(), codeStr, err.Error(), retriable)
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}

// writeValidationError rejects bad input without marking the wide event as
// errored: client mistakes are a failure outcome, not a service error.
func writeValidationError(w http.ResponseWriter, err error, details interface{}) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: err.Error(), Details: details}})
}
