package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/repo-ingest/internal/errors"
	"github.com/repo-ingest/internal/job"
	"github.com/repo-ingest/internal/storage"
	"github.com/repo-ingest/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeUpstreamFailed = "UPSTREAM_FAILED"
	ErrCodeRetryLater     = "RETRY_LATER"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// respondMappedError maps domain errors to HTTP responses. A slow-lane
// persistence failure reads as retryable so the caller re-submits instead of
// dropping work.
func respondMappedError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
		return
	}
	if errors.Is(err, storage.ErrStaleJob) {
		respondError(w, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
		return
	}
	if errors.Is(err, job.ErrInvalidTransition) {
		respondError(w, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
		return
	}

	var classified *apperrors.ClassifiedError
	if errors.As(err, &classified) {
		switch classified.Kind {
		case apperrors.KindRateLimited:
			respondError(w, http.StatusTooManyRequests, ErrCodeRateLimited, classified.Message, nil)
		case apperrors.KindFatal:
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, classified.Message, nil)
		case apperrors.KindLockContention:
			respondError(w, http.StatusConflict, ErrCodeConflict, classified.Message, nil)
		default:
			respondError(w, http.StatusServiceUnavailable, ErrCodeRetryLater, classified.Message, nil)
		}
		return
	}

	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
}
