package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/repo-ingest/internal/errors"
	"github.com/repo-ingest/internal/job"
	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/storage"
	"github.com/repo-ingest/internal/types"
)

type fakeWorkRouter struct {
	result *job.RouteResult
	err    error
	items  []types.WorkItem
}

func (f *fakeWorkRouter) Route(ctx context.Context, item types.WorkItem) (*job.RouteResult, error) {
	f.items = append(f.items, item)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTracker struct {
	job *models.JobRecord
	err error
}

func (f *fakeTracker) Pause(ctx context.Context, jobID, reason string) (*models.JobRecord, error) {
	return f.job, f.err
}

func (f *fakeTracker) Resume(ctx context.Context, jobID string) (*models.JobRecord, error) {
	return f.job, f.err
}

func (f *fakeTracker) Reset(ctx context.Context, jobID string) (*models.JobRecord, error) {
	return f.job, f.err
}

func (f *fakeTracker) UpdateChunkSize(ctx context.Context, jobID string, newSize int) (*models.JobRecord, error) {
	return f.job, f.err
}

type fakeJobReader struct {
	job *models.JobRecord
	err error
}

func (f *fakeJobReader) GetByID(ctx context.Context, jobID string) (*models.JobRecord, error) {
	return f.job, f.err
}

func newTestServer(router *fakeWorkRouter, tracker *fakeTracker, reader *fakeJobReader) *Server {
	if router == nil {
		router = &fakeWorkRouter{}
	}
	if tracker == nil {
		tracker = &fakeTracker{}
	}
	if reader == nil {
		reader = &fakeJobReader{}
	}
	return NewServer(&ServerConfig{Host: "127.0.0.1", Port: "0"}, router, tracker, reader)
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	rec := doRequest(s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSubmitWorkFastLane(t *testing.T) {
	router := &fakeWorkRouter{result: &job.RouteResult{
		Lane:   types.LaneFast,
		Result: map[string]interface{}{"updated": float64(1)},
	}}
	s := newTestServer(router, nil, nil)

	rec := doRequest(s, http.MethodPost, "/api/jobs", map[string]interface{}{
		"sourceEvent":         "status-update",
		"jobType":             "event-sync",
		"targetId":            "octo/hello",
		"affectedTargetCount": 1,
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var result job.RouteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, types.LaneFast, result.Lane)
	assert.Empty(t, result.JobID)

	require.Len(t, router.items, 1)
	assert.Equal(t, types.SourceStatusUpdate, router.items[0].SourceEvent)
}

func TestSubmitWorkSlowLane(t *testing.T) {
	router := &fakeWorkRouter{result: &job.RouteResult{
		Lane:  types.LaneSlow,
		JobID: "job-123",
	}}
	s := newTestServer(router, nil, nil)

	rec := doRequest(s, http.MethodPost, "/api/jobs", map[string]interface{}{
		"sourceEvent":   "repo-resync",
		"jobType":       "event-sync",
		"targetId":      "octo/hello",
		"totalEstimate": 500,
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var result job.RouteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, types.LaneSlow, result.Lane)
	assert.Equal(t, "job-123", result.JobID)
}

func TestSubmitWorkValidation(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing fields", map[string]interface{}{"sourceEvent": "status-update"}},
		{"unknown job type", map[string]interface{}{
			"sourceEvent": "status-update", "jobType": "mystery", "targetId": "octo/hello",
		}},
		{"unknown body field", map[string]interface{}{
			"sourceEvent": "status-update", "jobType": "event-sync", "targetId": "octo/hello", "bogus": true,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/api/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSubmitWorkPersistFailureIsRetryable(t *testing.T) {
	router := &fakeWorkRouter{err: apperrors.NewTransient("failed to enqueue job", nil)}
	s := newTestServer(router, nil, nil)

	rec := doRequest(s, http.MethodPost, "/api/jobs", map[string]interface{}{
		"sourceEvent": "repo-resync",
		"jobType":     "event-sync",
		"targetId":    "octo/hello",
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetJob(t *testing.T) {
	reader := &fakeJobReader{job: &models.JobRecord{
		ID:             "job-123",
		JobType:        types.JobTypeEventSync,
		TargetID:       "octo/hello",
		Status:         types.StatusActive,
		ProcessedCount: 200,
		TotalEstimate:  500,
	}}
	s := newTestServer(nil, nil, reader)

	rec := doRequest(s, http.MethodGet, "/api/jobs/job-123", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "job-123", got.ID)
	assert.EqualValues(t, 200, got.ProcessedCount)
}

func TestGetJobNotFound(t *testing.T) {
	reader := &fakeJobReader{err: fmt.Errorf("%w: job-404", storage.ErrJobNotFound)}
	s := newTestServer(nil, nil, reader)

	rec := doRequest(s, http.MethodGet, "/api/jobs/job-404", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPauseResumeReset(t *testing.T) {
	tracker := &fakeTracker{job: &models.JobRecord{ID: "job-123", Status: types.StatusPaused}}
	s := newTestServer(nil, tracker, nil)

	rec := doRequest(s, http.MethodPost, "/api/jobs/job-123/pause", map[string]string{"reason": "maintenance"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/jobs/job-123/resume", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/jobs/job-123/reset", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResumeInvalidTransition(t *testing.T) {
	tracker := &fakeTracker{err: fmt.Errorf("%w: job job-123 cannot resume from active", job.ErrInvalidTransition)}
	s := newTestServer(nil, tracker, nil)

	rec := doRequest(s, http.MethodPost, "/api/jobs/job-123/resume", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateChunkSize(t *testing.T) {
	tracker := &fakeTracker{job: &models.JobRecord{ID: "job-123", ChunkSize: 50}}
	s := newTestServer(nil, tracker, nil)

	rec := doRequest(s, http.MethodPatch, "/api/jobs/job-123/chunk-size", map[string]int{"chunkSize": 50})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPatch, "/api/jobs/job-123/chunk-size", map[string]int{"chunkSize": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
