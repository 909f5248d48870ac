package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/storage"
	"github.com/repo-ingest/internal/types"
)

// memStore is an in-memory JobStore with the same status-guard semantics as
// the Postgres repository
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*models.JobRecord
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*models.JobRecord)}
}

func cloneJob(job *models.JobRecord) *models.JobRecord {
	clone := *job
	clone.Metadata = make(map[string]string, len(job.Metadata))
	for k, v := range job.Metadata {
		clone.Metadata[k] = v
	}
	if job.LastError != nil {
		v := *job.LastError
		clone.LastError = &v
	}
	if job.LastErrorAt != nil {
		v := *job.LastErrorAt
		clone.LastErrorAt = &v
	}
	if job.LastProcessedAt != nil {
		v := *job.LastProcessedAt
		clone.LastProcessedAt = &v
	}
	return &clone
}

func (s *memStore) seed(job *models.JobRecord) *models.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]string)
	}
	s.jobs[job.ID] = cloneJob(job)
	return cloneJob(job)
}

func (s *memStore) UpsertQueued(ctx context.Context, jobType types.JobType, targetID string, totalEstimate int64, chunkSize int) (*models.JobRecord, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.JobType == jobType && job.TargetID == targetID {
			if !job.Status.Terminal() {
				return cloneJob(job), nil
			}
			job.Status = types.StatusQueued
			job.Cursor = ""
			job.LastItemKey = ""
			job.TotalEstimate = totalEstimate
			job.ProcessedCount = 0
			job.ChunkSize = chunkSize
			job.ErrorCount = 0
			job.ConsecutiveErrorCount = 0
			job.LastError = nil
			job.Metadata = make(map[string]string)
			return cloneJob(job), nil
		}
	}

	job := &models.JobRecord{
		ID:            uuid.New().String(),
		JobType:       jobType,
		TargetID:      targetID,
		Status:        types.StatusQueued,
		TotalEstimate: totalEstimate,
		ChunkSize:     chunkSize,
		Metadata:      make(map[string]string),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	s.jobs[job.ID] = job
	return cloneJob(job), nil
}

func (s *memStore) GetByID(ctx context.Context, jobID string) (*models.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrJobNotFound, jobID)
	}
	return cloneJob(job), nil
}

func (s *memStore) UpdateIf(ctx context.Context, job *models.JobRecord, expectedStatus types.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrJobNotFound, job.ID)
	}
	if current.Status != expectedStatus {
		return fmt.Errorf("%w: %s", storage.ErrStaleJob, job.ID)
	}

	clone := cloneJob(job)
	clone.UpdatedAt = time.Now()
	s.jobs[job.ID] = clone
	return nil
}

func (s *memStore) Reset(ctx context.Context, jobID string) (*models.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrJobNotFound, jobID)
	}

	job.Status = types.StatusQueued
	job.Cursor = ""
	job.LastItemKey = ""
	job.ProcessedCount = 0
	job.ErrorCount = 0
	job.ConsecutiveErrorCount = 0
	job.LastError = nil
	job.LastErrorAt = nil
	job.LastProcessedAt = nil
	job.Metadata = make(map[string]string)
	return cloneJob(job), nil
}
