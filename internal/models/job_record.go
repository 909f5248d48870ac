package models

import (
	"time"

	"github.com/repo-ingest/internal/types"
)

// JobRecord represents one ingestion job in the database (one per job type per target).
// It is the single source of truth for job state; all mutation goes through the
// progress tracker under a single-writer-per-job discipline.
type JobRecord struct {
	ID                    string            `json:"id" db:"id"`
	JobType               types.JobType     `json:"jobType" db:"job_type"`
	TargetID              string            `json:"targetId" db:"target_id"`
	Status                types.JobStatus   `json:"status" db:"status"`
	Cursor                string            `json:"cursor" db:"cursor"`
	LastItemKey           string            `json:"lastItemKey" db:"last_item_key"`
	TotalEstimate         int64             `json:"totalEstimate" db:"total_estimate"`
	ProcessedCount        int64             `json:"processedCount" db:"processed_count"`
	ChunkSize             int               `json:"chunkSize" db:"chunk_size"`
	ErrorCount            int               `json:"errorCount" db:"error_count"`
	ConsecutiveErrorCount int               `json:"consecutiveErrorCount" db:"consecutive_error_count"`
	LastError             *string           `json:"lastError,omitempty" db:"last_error"`
	LastErrorAt           *time.Time        `json:"lastErrorAt,omitempty" db:"last_error_at"`
	LastProcessedAt       *time.Time        `json:"lastProcessedAt,omitempty" db:"last_processed_at"`
	Metadata              map[string]string `json:"metadata" db:"metadata"`
	CreatedAt             time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time         `json:"updatedAt" db:"updated_at"`
}

// SetMeta writes a key into the metadata bag, allocating it on first use
func (j *JobRecord) SetMeta(key, value string) {
	if j.Metadata == nil {
		j.Metadata = make(map[string]string)
	}
	j.Metadata[key] = value
}

// Meta reads a key from the metadata bag
func (j *JobRecord) Meta(key string) string {
	if j.Metadata == nil {
		return ""
	}
	return j.Metadata[key]
}

// ClearMeta removes pause bookkeeping keys; called on resume and reset
func (j *JobRecord) ClearMeta(keys ...string) {
	for _, key := range keys {
		delete(j.Metadata, key)
	}
}
