package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/repo-ingest/internal/config"
	apperrors "github.com/repo-ingest/internal/errors"
	"github.com/repo-ingest/internal/logging"
	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/types"
)

// ErrInvalidTransition is returned when an administrative operation is not
// legal from the job's current status
var ErrInvalidTransition = errors.New("invalid status transition")

// Advance describes the outcome of one successfully processed chunk
type Advance struct {
	Processed   int    // items written by this chunk
	NewCursor   string // cursor to persist; empty leaves the cursor unchanged
	LastItemKey string // natural id of the newest item processed
	Exhausted   bool   // upstream reported no further pages
	// ThrottleNote is an optional observability annotation from the pager,
	// written into the metadata bag. It never affects scheduling.
	ThrottleNote string
}

// ProgressTracker owns every job state transition. Each mutating method reads
// the current record, computes the next state, and writes it back as one
// conditional update guarded by the status it read, so concurrent mutations
// of the same job cannot interleave silently.
type ProgressTracker struct {
	store JobStore
	cfg   config.ProgressConfig
	now   func() time.Time
}

// NewProgressTracker creates a tracker over the given store
func NewProgressTracker(store JobStore, cfg config.ProgressConfig) *ProgressTracker {
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = 5
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = 10
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 100
	}

	return &ProgressTracker{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// RecordSuccess advances the cursor and counters after a clean chunk.
// First success moves a queued job to active; the job completes when the
// upstream is exhausted or the processed count reaches a known estimate.
func (t *ProgressTracker) RecordSuccess(ctx context.Context, jobID string, adv Advance) (*models.JobRecord, error) {
	job, err := t.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	expected := job.Status
	now := t.now().UTC()

	job.ProcessedCount += int64(adv.Processed)
	if adv.NewCursor != "" {
		job.Cursor = adv.NewCursor
	}
	if adv.LastItemKey != "" {
		job.LastItemKey = adv.LastItemKey
	}
	job.ConsecutiveErrorCount = 0
	job.LastProcessedAt = &now

	// The estimate is advisory and revisable upward; processedCount never
	// exceeds it once known.
	if job.TotalEstimate > 0 && job.ProcessedCount > job.TotalEstimate {
		job.TotalEstimate = job.ProcessedCount
	}

	if adv.ThrottleNote != "" {
		job.SetMeta(types.MetaThrottleNote, adv.ThrottleNote)
	}

	switch {
	case adv.Exhausted:
		job.Status = types.StatusCompleted
	case job.TotalEstimate > 0 && job.ProcessedCount >= job.TotalEstimate:
		job.Status = types.StatusCompleted
	default:
		job.Status = types.StatusActive
	}

	if err := t.store.UpdateIf(ctx, job, expected); err != nil {
		return nil, err
	}

	if job.Status == types.StatusCompleted {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"jobId":     job.ID,
			"processed": job.ProcessedCount,
		}).Info("Job completed")
	}

	return job, nil
}

// RecordError counts a failed chunk and applies the error policy: fatal
// errors fail the job, rate limits pause it immediately with a resume time,
// and transient errors pause it once the consecutive budget is spent.
func (t *ProgressTracker) RecordError(ctx context.Context, jobID string, cause error) (*models.JobRecord, error) {
	job, err := t.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	expected := job.Status
	now := t.now().UTC()
	classified := apperrors.Classify(cause)

	job.ErrorCount++
	job.ConsecutiveErrorCount++
	msg := classified.Error()
	job.LastError = &msg
	job.LastErrorAt = &now

	switch classified.Kind {
	case apperrors.KindFatal:
		job.Status = types.StatusFailed

	case apperrors.KindRateLimited:
		job.Status = types.StatusPaused
		job.SetMeta(types.MetaPauseReason, types.PauseReasonRateLimited)
		resumeAt := classified.ResetAt
		if resumeAt.IsZero() {
			resumeAt = now.Add(time.Minute)
		}
		job.SetMeta(types.MetaResumeNotBefore, resumeAt.UTC().Format(time.RFC3339))

	default:
		if job.ConsecutiveErrorCount >= t.cfg.MaxConsecutiveErrors {
			job.Status = types.StatusPaused
			job.SetMeta(types.MetaPauseReason, types.PauseReasonTooManyErrors)
		}
	}

	if err := t.store.UpdateIf(ctx, job, expected); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"jobId":             job.ID,
		"errorKind":         string(classified.Kind),
		"consecutiveErrors": job.ConsecutiveErrorCount,
		"status":            string(job.Status),
	}).Warn("Job chunk failed")

	return job, nil
}

// ShouldContinue is the single decision point the scheduler consults before
// running a chunk. It flips an exhausted-estimate job to completed and
// auto-resumes a rate-limit pause once the quota window has passed.
func (t *ProgressTracker) ShouldContinue(ctx context.Context, jobID string) (bool, *models.JobRecord, error) {
	job, err := t.store.GetByID(ctx, jobID)
	if err != nil {
		return false, nil, err
	}

	switch job.Status {
	case types.StatusCompleted, types.StatusFailed:
		return false, job, nil

	case types.StatusPaused:
		if job.Meta(types.MetaPauseReason) != types.PauseReasonRateLimited {
			return false, job, nil
		}
		resumeAt, err := time.Parse(time.RFC3339, job.Meta(types.MetaResumeNotBefore))
		if err != nil || t.now().Before(resumeAt) {
			return false, job, nil
		}

		job.Status = types.StatusActive
		job.ConsecutiveErrorCount = 0
		job.ClearMeta(types.MetaPauseReason, types.MetaResumeNotBefore)
		if err := t.store.UpdateIf(ctx, job, types.StatusPaused); err != nil {
			return false, nil, err
		}
		logging.FromContext(ctx).WithField("jobId", job.ID).Info("Rate-limit pause expired, job resumed")
		return true, job, nil

	default:
		if job.TotalEstimate > 0 && job.ProcessedCount >= job.TotalEstimate {
			expected := job.Status
			job.Status = types.StatusCompleted
			if err := t.store.UpdateIf(ctx, job, expected); err != nil {
				return false, nil, err
			}
			return false, job, nil
		}
		return true, job, nil
	}
}

// UpdateChunkSize tunes the page size for subsequent chunks, clamped to the
// configured bounds. Persisted so the next invocation inherits it.
func (t *ProgressTracker) UpdateChunkSize(ctx context.Context, jobID string, newSize int) (*models.JobRecord, error) {
	job, err := t.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("%w: job %s is %s and cannot be tuned", ErrInvalidTransition, jobID, job.Status)
	}

	if newSize < t.cfg.MinChunkSize {
		newSize = t.cfg.MinChunkSize
	}
	if newSize > t.cfg.MaxChunkSize {
		newSize = t.cfg.MaxChunkSize
	}

	expected := job.Status
	job.ChunkSize = newSize
	if err := t.store.UpdateIf(ctx, job, expected); err != nil {
		return nil, err
	}

	return job, nil
}

// Pause administratively stops scheduling for a running job
func (t *ProgressTracker) Pause(ctx context.Context, jobID, reason string) (*models.JobRecord, error) {
	job, err := t.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanTransition(types.StatusPaused) {
		return nil, fmt.Errorf("%w: job %s cannot pause from %s", ErrInvalidTransition, jobID, job.Status)
	}

	if reason == "" {
		reason = "administrative"
	}

	expected := job.Status
	job.Status = types.StatusPaused
	job.SetMeta(types.MetaPauseReason, reason)
	if err := t.store.UpdateIf(ctx, job, expected); err != nil {
		return nil, err
	}

	return job, nil
}

// Resume moves a paused job back to active. This is the only transition out
// of paused; the consecutive error budget starts fresh.
func (t *ProgressTracker) Resume(ctx context.Context, jobID string) (*models.JobRecord, error) {
	job, err := t.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != types.StatusPaused {
		return nil, fmt.Errorf("%w: job %s cannot resume from %s", ErrInvalidTransition, jobID, job.Status)
	}

	job.Status = types.StatusActive
	job.ConsecutiveErrorCount = 0
	job.ClearMeta(types.MetaPauseReason, types.MetaResumeNotBefore)
	if err := t.store.UpdateIf(ctx, job, types.StatusPaused); err != nil {
		return nil, err
	}

	return job, nil
}

// Reset administratively returns a job to queued with cleared counters.
// The only way out of a terminal status.
func (t *ProgressTracker) Reset(ctx context.Context, jobID string) (*models.JobRecord, error) {
	return t.store.Reset(ctx, jobID)
}
