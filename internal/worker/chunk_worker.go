// Package worker executes ingestion jobs one bounded chunk at a time and
// re-invokes them on a schedule. A worker invocation never loops; it
// processes one chunk and returns, so any host's execution ceiling is safe.
package worker

import (
	"context"
	"fmt"

	apperrors "github.com/repo-ingest/internal/errors"
	"github.com/repo-ingest/internal/job"
	"github.com/repo-ingest/internal/logging"
	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/pager"
	"github.com/repo-ingest/internal/storage"
	"github.com/repo-ingest/internal/types"
)

// ChunkPager advances one upstream page per call
type ChunkPager interface {
	NextChunk(ctx context.Context, jobType types.JobType, targetID, cursor string, chunkSize int) (*pager.Chunk, error)
}

// EventStore persists ingested items idempotently by natural key
type EventStore interface {
	BatchInsert(ctx context.Context, events []*models.Event) (int, error)
}

// ChunkResult is the structured outcome of one worker invocation. The worker
// never raises errors to its invoker; classification happens here so the
// scheduler's control loop stays trivial.
type ChunkResult struct {
	JobID   string
	Success bool
	// NoOp means nothing ran: lock contention, or the job is not runnable
	NoOp      bool
	ErrorKind apperrors.Kind
	Fetched   int
	Written   int
	Status    types.JobStatus
}

// ChunkWorker processes exactly one chunk per RunOnce call
type ChunkWorker struct {
	tracker *job.ProgressTracker
	pager   ChunkPager
	events  EventStore
	locks   *storage.JobLock
}

// NewChunkWorker creates a chunk worker
func NewChunkWorker(tracker *job.ProgressTracker, chunkPager ChunkPager, events EventStore, locks *storage.JobLock) *ChunkWorker {
	return &ChunkWorker{
		tracker: tracker,
		pager:   chunkPager,
		events:  events,
		locks:   locks,
	}
}

// RunOnce acquires the per-job lease, processes one chunk, reports the
// outcome to the tracker, and returns. A concurrent invocation for the same
// job detects the lease and exits as a no-op rather than double-processing
// the cursor.
func (w *ChunkWorker) RunOnce(ctx context.Context, jobID string) ChunkResult {
	logger := logging.FromContext(ctx).WithField("jobId", jobID)

	lease, err := w.locks.Acquire(ctx, jobID)
	if err != nil {
		if apperrors.IsLockContention(err) {
			logger.Debug("Job lease held elsewhere, skipping")
			return ChunkResult{JobID: jobID, NoOp: true, ErrorKind: apperrors.KindLockContention}
		}
		logger.WithError(err).Warn("Failed to acquire job lease")
		return ChunkResult{JobID: jobID, NoOp: true, ErrorKind: apperrors.KindTransient}
	}
	defer lease.Release(ctx)

	cont, record, err := w.tracker.ShouldContinue(ctx, jobID)
	if err != nil {
		logger.WithError(err).Warn("Failed to load job")
		return ChunkResult{JobID: jobID, NoOp: true, ErrorKind: apperrors.KindOf(err)}
	}
	if !cont {
		return ChunkResult{JobID: jobID, NoOp: true, Status: record.Status}
	}

	chunk, err := w.pager.NextChunk(ctx, record.JobType, record.TargetID, record.Cursor, record.ChunkSize)
	if err != nil {
		return w.recordFailure(ctx, jobID, err, logger)
	}

	written := 0
	if len(chunk.Items) > 0 {
		written, err = w.events.BatchInsert(ctx, chunk.Items)
		if err != nil {
			return w.recordFailure(ctx, jobID, err, logger)
		}
	}

	adv := job.Advance{
		Processed: written,
		NewCursor: chunk.NewCursor,
		Exhausted: chunk.Exhausted,
	}
	if len(chunk.Items) > 0 {
		adv.LastItemKey = chunk.Items[0].EventID
	}
	if chunk.SuggestedDelay > 0 {
		adv.ThrottleNote = fmt.Sprintf("quota low (%d/%d), suggested delay %s",
			chunk.Snapshot.Remaining, chunk.Snapshot.Limit, chunk.SuggestedDelay)
	}

	updated, err := w.tracker.RecordSuccess(ctx, jobID, adv)
	if err != nil {
		logger.WithError(err).Error("Failed to record chunk success")
		return ChunkResult{JobID: jobID, ErrorKind: apperrors.KindOf(err), Fetched: len(chunk.Items), Written: written}
	}

	logger.WithFields(map[string]interface{}{
		"fetched":   len(chunk.Items),
		"written":   written,
		"cursor":    updated.Cursor,
		"processed": updated.ProcessedCount,
		"status":    string(updated.Status),
	}).Info("Chunk processed")

	return ChunkResult{
		JobID:   jobID,
		Success: true,
		Fetched: len(chunk.Items),
		Written: written,
		Status:  updated.Status,
	}
}

func (w *ChunkWorker) recordFailure(ctx context.Context, jobID string, cause error, logger *logging.Logger) ChunkResult {
	kind := apperrors.KindOf(cause)

	updated, err := w.tracker.RecordError(ctx, jobID, cause)
	if err != nil {
		logger.WithError(err).Error("Failed to record chunk error")
		return ChunkResult{JobID: jobID, ErrorKind: kind}
	}

	return ChunkResult{JobID: jobID, ErrorKind: kind, Status: updated.Status}
}
