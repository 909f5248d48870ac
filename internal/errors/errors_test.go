package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromHTTPStatus(t *testing.T) {
	resetAt := time.Now().Add(15 * time.Minute)

	tests := []struct {
		name        string
		status      int
		rateLimited bool
		wantKind    Kind
	}{
		{"429 is rate limited", http.StatusTooManyRequests, false, KindRateLimited},
		{"403 with exhausted quota is rate limited", http.StatusForbidden, true, KindRateLimited},
		{"403 without quota signal is fatal", http.StatusForbidden, false, KindFatal},
		{"401 is fatal", http.StatusUnauthorized, false, KindFatal},
		{"404 is fatal", http.StatusNotFound, false, KindFatal},
		{"422 is fatal", http.StatusUnprocessableEntity, false, KindFatal},
		{"500 is transient", http.StatusInternalServerError, false, KindTransient},
		{"502 is transient", http.StatusBadGateway, false, KindTransient},
		{"503 is transient", http.StatusServiceUnavailable, false, KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromHTTPStatus(tt.status, tt.rateLimited, resetAt)
			assert.Equal(t, tt.wantKind, err.Kind)
			if tt.wantKind == KindRateLimited {
				assert.Equal(t, resetAt, err.ResetAt)
			}
		})
	}
}

func TestClassifyPassesThroughClassifiedErrors(t *testing.T) {
	resetAt := time.Now().Add(time.Hour)
	original := NewRateLimited("quota exhausted", resetAt)

	// Even when wrapped, the original classification survives
	wrapped := fmt.Errorf("fetch page: %w", original)

	classified := Classify(wrapped)
	assert.Equal(t, KindRateLimited, classified.Kind)
	assert.Equal(t, resetAt, classified.ResetAt)
}

func TestClassifyDefaultsToTransient(t *testing.T) {
	classified := Classify(fmt.Errorf("something odd"))
	assert.Equal(t, KindTransient, classified.Kind)

	assert.True(t, IsRetryable(fmt.Errorf("connection reset")))
	assert.False(t, IsRetryable(NewFatal("bad credentials", nil)))
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestClassifyContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	classified := Classify(ctx.Err())
	assert.Equal(t, KindTransient, classified.Kind)
}

func TestIsLockContention(t *testing.T) {
	err := NewLockContention("job-123")
	assert.True(t, IsLockContention(err))
	assert.True(t, IsLockContention(fmt.Errorf("run once: %w", err)))
	assert.False(t, IsLockContention(NewTransient("blip", nil)))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(NewRateLimited("limit", time.Now())))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(NewFatal("gone", nil)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(NewLockContention("job-1")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(NewTransient("blip", nil)))
}
