// Package types provides common type definitions for the repo ingestion system.
package types

import "time"

// JobType represents the kind of ingestion work a job performs
type JobType string

const (
	// JobTypeEventSync ingests repository events (stars, forks, PR/issue activity)
	JobTypeEventSync JobType = "event-sync"
	// JobTypePRSync ingests pull requests with reviews and comments
	JobTypePRSync JobType = "pr-sync"
	// JobTypeIssueSync ingests issues and issue comments
	JobTypeIssueSync JobType = "issue-sync"
	// JobTypeEmbeddingCompute computes embeddings over previously ingested items
	JobTypeEmbeddingCompute JobType = "embedding-compute"
)

// Valid reports whether the job type is a known value
func (t JobType) Valid() bool {
	switch t {
	case JobTypeEventSync, JobTypePRSync, JobTypeIssueSync, JobTypeEmbeddingCompute:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of an ingestion job
type JobStatus string

const (
	// StatusQueued represents a job waiting for its first chunk
	StatusQueued JobStatus = "queued"
	// StatusActive represents a job that has processed at least one chunk
	StatusActive JobStatus = "active"
	// StatusPaused represents a job stopped by the error budget or a rate limit
	StatusPaused JobStatus = "paused"
	// StatusCompleted represents a job that drained its upstream pages
	StatusCompleted JobStatus = "completed"
	// StatusFailed represents a job stopped by a fatal error
	StatusFailed JobStatus = "failed"
)

// Terminal reports whether the status admits no further scheduling
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal
// state-machine transition. Administrative reset (any -> queued) is
// handled separately and is not covered here.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case StatusQueued, StatusActive:
		return next == StatusActive || next == StatusPaused || next == StatusFailed || next == StatusCompleted
	case StatusPaused:
		return next == StatusActive
	case StatusCompleted, StatusFailed:
		return false
	}
	return false
}

// Lane represents the execution path a unit of work is routed to
type Lane string

const (
	// LaneFast runs the work synchronously on the request host
	LaneFast Lane = "fast"
	// LaneSlow enqueues a job record for the long-running worker host
	LaneSlow Lane = "slow"
)

// SourceEvent represents the kind of inbound trigger the router classifies
type SourceEvent string

const (
	// SourceStatusUpdate is a single-entity webhook update
	SourceStatusUpdate SourceEvent = "status-update"
	// SourceWebhookPush is a push webhook for one repository
	SourceWebhookPush SourceEvent = "webhook-push"
	// SourceRepoResync is a full repository resync request
	SourceRepoResync SourceEvent = "repo-resync"
	// SourceBackfillRequest is an explicit historical backfill request
	SourceBackfillRequest SourceEvent = "backfill-request"
)

// WorkItem is the transient classification unit consumed by the router.
// It is never persisted; routing to the slow lane materializes a job record.
type WorkItem struct {
	SourceEvent         SourceEvent `json:"sourceEvent"`
	JobType             JobType     `json:"jobType"`
	TargetID            string      `json:"targetId"`
	AffectedTargetCount int         `json:"affectedTargetCount"`
	TotalEstimate       int64       `json:"totalEstimate,omitempty"`
}

// RateLimitSnapshot captures upstream quota telemetry after a page fetch
type RateLimitSnapshot struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"resetAt"`
}

// Exhausted reports whether the upstream quota window has no requests left
func (s RateLimitSnapshot) Exhausted() bool {
	return s.Limit > 0 && s.Remaining <= 0
}

// Metadata keys used for pause/resume bookkeeping on job records.
// Scheduling decisions depend only on typed fields; the metadata bag is an
// observability annex.
const (
	// MetaPauseReason records why a job was paused
	MetaPauseReason = "pauseReason"
	// MetaResumeNotBefore records the earliest resume time for a rate-limit pause (RFC3339)
	MetaResumeNotBefore = "resumeNotBefore"
	// MetaThrottleNote records the last throttling hint from the pager
	MetaThrottleNote = "throttleNote"
)

// Pause reasons written into job metadata
const (
	PauseReasonTooManyErrors = "too_many_errors"
	PauseReasonRateLimited   = "rate_limited"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
