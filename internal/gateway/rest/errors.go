package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/syntrixbase/daybook/internal/bucket"
	"github.com/syntrixbase/daybook/internal/confirm"
	"github.com/syntrixbase/daybook/pkg/model"
)

var (
	errBadRequest = errors.New("bad request")
	errTooLarge   = errors.New("request body too large")
)

// StatusClientClosed is reported when the caller went away before the
// store finished.
const StatusClientClosed = 499

// APIError represents a structured error response
type APIError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  []bucket.FieldError `json:"errors,omitempty"`
}

// Error codes
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidation       = "VALIDATION_FAILED"
	ErrCodeUnauthorized     = "NOT_AUTHENTICATED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeStaleTicket      = "STALE_CONFIRMATION"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeCanceled         = "CANCELED"
	ErrCodeRemoteFailure    = "REMOTE_FAILURE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeMissingCommunity = "MISSING_COMMUNITY"
)

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

// writeStoreError maps store and gateway errors onto a response.
func writeStoreError(w http.ResponseWriter, err error) {
	var invalid *bucket.ValidationError
	switch {
	case errors.Is(err, model.ErrCanceled):
		writeError(w, StatusClientClosed, ErrCodeCanceled, "Request canceled")
	case errors.Is(err, model.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Not found")
	case errors.Is(err, model.ErrMissingCommunity):
		writeError(w, http.StatusBadRequest, ErrCodeMissingCommunity, "Community id is required")
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, APIError{
			Code:    ErrCodeValidation,
			Message: "Invalid " + invalid.Entity,
			Errors:  invalid.Errors,
		})
	case errors.Is(err, errTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "Request body too large")
	case errors.Is(err, model.ErrInvalidEntity), errors.Is(err, model.ErrInvalidQuery), errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, confirm.ErrStaleTicket):
		writeError(w, http.StatusConflict, ErrCodeStaleTicket, "Confirmation is no longer pending")
	case errors.Is(err, model.ErrExists), errors.Is(err, model.ErrPreconditionFailed):
		writeError(w, http.StatusConflict, ErrCodeConflict, "Conflicting write")
	case errors.Is(err, model.ErrRemoteRead), errors.Is(err, model.ErrRemoteWrite):
		writeError(w, http.StatusBadGateway, ErrCodeRemoteFailure, "Document store unavailable")
	default:
		slog.Error("Unhandled gateway error", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error")
	}
}
