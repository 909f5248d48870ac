// Package errors provides the failure taxonomy for the ingestion pipeline.
// Every error crossing the worker/tracker boundary is classified into a Kind
// that drives the retry, pause, and fail decisions of the job state machine.
package errors

import (
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Kind categorizes a failure for scheduling purposes
type Kind string

const (
	// KindTransient covers network blips and upstream 5xx; eligible for retry on the next tick
	KindTransient Kind = "transient"
	// KindRateLimited covers quota exhaustion; the job pauses until the quota window resets
	KindRateLimited Kind = "rate_limited"
	// KindFatal covers permanent failures (auth, schema mismatch); the job fails, retrying cannot help
	KindFatal Kind = "fatal"
	// KindLockContention means another worker owns the job; a no-op, not surfaced to callers
	KindLockContention Kind = "lock_contention"
)

// ClassifiedError is an error carrying its scheduling classification
type ClassifiedError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	// ResetAt is set for rate-limited errors: the earliest safe retry time
	ResetAt time.Time
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// NewTransient creates a transient error
func NewTransient(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Kind:    KindTransient,
		Code:    "TRANSIENT",
		Message: message,
		Cause:   cause,
	}
}

// NewRateLimited creates a rate-limit error carrying the quota reset time
func NewRateLimited(message string, resetAt time.Time) *ClassifiedError {
	return &ClassifiedError{
		Kind:    KindRateLimited,
		Code:    "RATE_LIMITED",
		Message: message,
		ResetAt: resetAt,
	}
}

// NewFatal creates a fatal error
func NewFatal(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Kind:    KindFatal,
		Code:    "FATAL",
		Message: message,
		Cause:   cause,
	}
}

// NewLockContention creates a lock-contention marker for a job
func NewLockContention(jobID string) *ClassifiedError {
	return &ClassifiedError{
		Kind:    KindLockContention,
		Code:    "LOCK_CONTENTION",
		Message: fmt.Sprintf("job %s is owned by another worker", jobID),
	}
}

// FromHTTPStatus classifies an upstream HTTP response status.
// 403 is ambiguous on the GitHub API: it signals a rate limit when the
// quota header reads zero, and a permission failure otherwise.
func FromHTTPStatus(status int, rateLimited bool, resetAt time.Time) *ClassifiedError {
	switch {
	case status == http.StatusTooManyRequests:
		return NewRateLimited(fmt.Sprintf("upstream returned %d", status), resetAt)
	case status == http.StatusForbidden && rateLimited:
		return NewRateLimited(fmt.Sprintf("upstream returned %d with exhausted quota", status), resetAt)
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		status == http.StatusNotFound || status == http.StatusGone ||
		status == http.StatusUnprocessableEntity:
		return NewFatal(fmt.Sprintf("upstream returned %d", status), nil)
	case status >= 500:
		return NewTransient(fmt.Sprintf("upstream returned %d", status), nil)
	default:
		return NewTransient(fmt.Sprintf("unexpected upstream status %d", status), nil)
	}
}

// Classify returns the classified form of err. Already-classified errors pass
// through; context timeouts and network errors classify as transient;
// everything else defaults to transient.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewTransient("network timeout", err)
		}
		return NewTransient("network error", err)
	}

	return NewTransient("unclassified error", err)
}

// KindOf returns the classification kind for err
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// IsRetryable reports whether err may succeed on a later attempt
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// IsRateLimited reports whether err is a quota exhaustion
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// IsLockContention reports whether err marks a job owned by another worker
func IsLockContention(err error) bool {
	var classified *ClassifiedError
	return stderrors.As(err, &classified) && classified.Kind == KindLockContention
}

// HTTPStatus maps a classified error to an API response status
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindFatal:
		return http.StatusBadGateway
	case KindLockContention:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}
