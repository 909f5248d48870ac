// Package job owns the ingestion job state machine and the fast/slow lane
// routing in front of it.
package job

import (
	"context"

	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/types"
)

// JobStore is the durable job persistence the tracker and router depend on.
// storage.JobRepository implements it; tests substitute an in-memory fake.
type JobStore interface {
	// UpsertQueued creates or re-queues the job keyed by (jobType, targetID)
	UpsertQueued(ctx context.Context, jobType types.JobType, targetID string, totalEstimate int64, chunkSize int) (*models.JobRecord, error)
	// GetByID returns the current job record
	GetByID(ctx context.Context, jobID string) (*models.JobRecord, error)
	// UpdateIf writes the record back only while the job is still in
	// expectedStatus; a concurrent transition yields storage.ErrStaleJob
	UpdateIf(ctx context.Context, job *models.JobRecord, expectedStatus types.JobStatus) error
	// Reset administratively returns the job to queued with cleared counters
	Reset(ctx context.Context, jobID string) (*models.JobRecord, error)
}
