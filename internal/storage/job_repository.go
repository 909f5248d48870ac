package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/types"
)

// ErrJobNotFound is returned when no job matches the given id
var ErrJobNotFound = errors.New("job not found")

// ErrStaleJob is returned when a conditional update finds the job in a
// different status than the caller observed. The caller must reload and
// re-decide rather than overwrite.
var ErrStaleJob = errors.New("job state changed since read")

const jobColumns = `
	id, job_type, target_id, status, cursor, last_item_key,
	total_estimate, processed_count, chunk_size,
	error_count, consecutive_error_count,
	last_error, last_error_at, last_processed_at,
	metadata, created_at, updated_at
`

// JobRepository handles ingestion job persistence in Postgres
type JobRepository struct {
	db *PostgresDB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *PostgresDB) *JobRepository {
	return &JobRepository{db: db}
}

// UpsertQueued creates a queued job for (jobType, targetId), or reuses the
// existing one. A terminal job (completed/failed) is re-queued with cleared
// counters; a live job is returned untouched so a duplicate request cannot
// spawn a second writer for the same target.
func (r *JobRepository) UpsertQueued(ctx context.Context, jobType types.JobType, targetID string, totalEstimate int64, chunkSize int) (*models.JobRecord, error) {
	query := `
		INSERT INTO sync_jobs (
			id, job_type, target_id, status, cursor, last_item_key,
			total_estimate, processed_count, chunk_size,
			error_count, consecutive_error_count, metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, '', '', $5, 0, $6, 0, 0, '{}', now(), now())
		ON CONFLICT (job_type, target_id) DO UPDATE SET
			status = $4, cursor = '', last_item_key = '',
			total_estimate = $5, processed_count = 0, chunk_size = $6,
			error_count = 0, consecutive_error_count = 0,
			last_error = NULL, last_error_at = NULL,
			metadata = '{}', updated_at = now()
		WHERE sync_jobs.status IN ('completed', 'failed')
		RETURNING ` + jobColumns

	row := r.db.Pool().QueryRow(ctx, query,
		uuid.New().String(), jobType, targetID, types.StatusQueued, totalEstimate, chunkSize)

	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to upsert job: %w", err)
	}

	// Conflict with a live job: the insert produced no row, return the
	// existing record.
	return r.GetByKey(ctx, jobType, targetID)
}

// GetByID retrieves a job by id
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*models.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE id = $1`

	job, err := scanJob(r.db.Pool().QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// GetByKey retrieves a job by its natural key
func (r *JobRepository) GetByKey(ctx context.Context, jobType types.JobType, targetID string) (*models.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE job_type = $1 AND target_id = $2`

	job, err := scanJob(r.db.Pool().QueryRow(ctx, query, jobType, targetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrJobNotFound, jobType, targetID)
		}
		return nil, fmt.Errorf("failed to get job by key: %w", err)
	}

	return job, nil
}

// UpdateIf writes the whole record back in a single statement, guarded by the
// status the caller read. This is the conditional-update primitive the state
// machine builds on: concurrent transitions for the same job cannot interleave
// silently, the loser gets ErrStaleJob.
func (r *JobRepository) UpdateIf(ctx context.Context, job *models.JobRecord, expectedStatus types.JobStatus) error {
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal job metadata: %w", err)
	}

	query := `
		UPDATE sync_jobs
		SET status = $3, cursor = $4, last_item_key = $5,
			total_estimate = $6, processed_count = $7, chunk_size = $8,
			error_count = $9, consecutive_error_count = $10,
			last_error = $11, last_error_at = $12, last_processed_at = $13,
			metadata = $14, updated_at = now()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Pool().Exec(ctx, query,
		job.ID,
		expectedStatus,
		job.Status,
		job.Cursor,
		job.LastItemKey,
		job.TotalEstimate,
		job.ProcessedCount,
		job.ChunkSize,
		job.ErrorCount,
		job.ConsecutiveErrorCount,
		job.LastError,
		job.LastErrorAt,
		job.LastProcessedAt,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a vanished job from a concurrent transition
		if _, getErr := r.GetByID(ctx, job.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s", ErrStaleJob, job.ID)
	}

	return nil
}

// ListRunnable retrieves jobs the scheduler should consider on its next tick.
// Paused jobs are included so rate-limit pauses can auto-resume once their
// window passes; terminal jobs never come back.
func (r *JobRepository) ListRunnable(ctx context.Context, limit int) ([]*models.JobRecord, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM sync_jobs
		WHERE status IN ('queued', 'active', 'paused')
		ORDER BY updated_at ASC
		LIMIT $1
	`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runnable jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// Reset administratively returns a job to queued with cleared counters.
// This is the only way out of a terminal status.
func (r *JobRepository) Reset(ctx context.Context, jobID string) (*models.JobRecord, error) {
	query := `
		UPDATE sync_jobs
		SET status = 'queued', cursor = '', last_item_key = '',
			processed_count = 0, error_count = 0, consecutive_error_count = 0,
			last_error = NULL, last_error_at = NULL, last_processed_at = NULL,
			metadata = '{}', updated_at = now()
		WHERE id = $1
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.Pool().QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to reset job: %w", err)
	}

	return job, nil
}

// Delete removes a job record
func (r *JobRepository) Delete(ctx context.Context, jobID string) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM sync_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	return nil
}

// scanJob scans one row into a JobRecord
func scanJob(row pgx.Row) (*models.JobRecord, error) {
	var job models.JobRecord
	var lastError *string
	var lastErrorAt, lastProcessedAt *time.Time
	var metadata []byte

	err := row.Scan(
		&job.ID,
		&job.JobType,
		&job.TargetID,
		&job.Status,
		&job.Cursor,
		&job.LastItemKey,
		&job.TotalEstimate,
		&job.ProcessedCount,
		&job.ChunkSize,
		&job.ErrorCount,
		&job.ConsecutiveErrorCount,
		&lastError,
		&lastErrorAt,
		&lastProcessedAt,
		&metadata,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.LastError = lastError
	job.LastErrorAt = lastErrorAt
	job.LastProcessedAt = lastProcessedAt

	job.Metadata = make(map[string]string)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job metadata: %w", err)
		}
	}

	return &job, nil
}
