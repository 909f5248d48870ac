package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobTypeValid(t *testing.T) {
	tests := []struct {
		jobType JobType
		want    bool
	}{
		{JobTypeEventSync, true},
		{JobTypePRSync, true},
		{JobTypeIssueSync, true},
		{JobTypeEmbeddingCompute, true},
		{JobType("balance-sync"), false},
		{JobType(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.jobType), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.jobType.Valid())
		})
	}
}

func TestJobStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"queued to active", StatusQueued, StatusActive, true},
		{"queued to paused", StatusQueued, StatusPaused, true},
		{"queued to failed", StatusQueued, StatusFailed, true},
		{"active to paused", StatusActive, StatusPaused, true},
		{"active to completed", StatusActive, StatusCompleted, true},
		{"active to failed", StatusActive, StatusFailed, true},
		{"paused to active", StatusPaused, StatusActive, true},
		{"paused to completed", StatusPaused, StatusCompleted, false},
		{"paused to failed", StatusPaused, StatusFailed, false},
		{"completed is terminal", StatusCompleted, StatusActive, false},
		{"failed is terminal", StatusFailed, StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusActive.Terminal())
	assert.False(t, StatusPaused.Terminal())
}

func TestRateLimitSnapshotExhausted(t *testing.T) {
	resetAt := time.Now().Add(30 * time.Minute)

	assert.True(t, RateLimitSnapshot{Remaining: 0, Limit: 5000, ResetAt: resetAt}.Exhausted())
	assert.False(t, RateLimitSnapshot{Remaining: 1, Limit: 5000, ResetAt: resetAt}.Exhausted())
	// Unknown limit means exhaustion cannot be inferred
	assert.False(t, RateLimitSnapshot{Remaining: 0, Limit: 0}.Exhausted())
}
