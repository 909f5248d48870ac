package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repo-ingest/internal/config"
	apperrors "github.com/repo-ingest/internal/errors"
	"github.com/repo-ingest/internal/types"
)

type fakeExecutor struct {
	calls  []types.WorkItem
	result interface{}
	err    error
}

func (f *fakeExecutor) ExecuteInline(ctx context.Context, item types.WorkItem) (interface{}, error) {
	f.calls = append(f.calls, item)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestRouter(store JobStore, executor Executor) *Router {
	return NewRouter(store, executor,
		config.RouterConfig{FanOutThreshold: 10},
		config.ProgressConfig{DefaultChunkSize: 100})
}

func TestClassifyStaticTable(t *testing.T) {
	router := newTestRouter(newMemStore(), &fakeExecutor{})

	tests := []struct {
		sourceEvent types.SourceEvent
		want        types.Lane
	}{
		{types.SourceStatusUpdate, types.LaneFast},
		{types.SourceWebhookPush, types.LaneFast},
		{types.SourceRepoResync, types.LaneSlow},
		{types.SourceBackfillRequest, types.LaneSlow},
		{types.SourceEvent("unknown-kind"), types.LaneSlow},
	}

	for _, tt := range tests {
		lane := router.Classify(types.WorkItem{SourceEvent: tt.sourceEvent, AffectedTargetCount: 1})
		assert.Equal(t, tt.want, lane, "sourceEvent=%s", tt.sourceEvent)
	}
}

func TestClassifyFanOutOverride(t *testing.T) {
	router := newTestRouter(newMemStore(), &fakeExecutor{})

	fastItem := func(count int) types.WorkItem {
		return types.WorkItem{SourceEvent: types.SourceStatusUpdate, AffectedTargetCount: count}
	}

	assert.Equal(t, types.LaneFast, router.Classify(fastItem(1)))
	assert.Equal(t, types.LaneFast, router.Classify(fastItem(10)))
	assert.Equal(t, types.LaneSlow, router.Classify(fastItem(11)))
	assert.Equal(t, types.LaneSlow, router.Classify(fastItem(25)))
}

func TestRouteFastLaneRunsInline(t *testing.T) {
	executor := &fakeExecutor{result: map[string]int{"updated": 1}}
	router := newTestRouter(newMemStore(), executor)

	result, err := router.Route(context.Background(), types.WorkItem{
		SourceEvent:         types.SourceStatusUpdate,
		JobType:             types.JobTypeEventSync,
		TargetID:            "octo/hello",
		AffectedTargetCount: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, types.LaneFast, result.Lane)
	assert.Empty(t, result.JobID)
	assert.Equal(t, executor.result, result.Result)
	assert.Len(t, executor.calls, 1)
}

func TestRouteSlowLaneEnqueuesJob(t *testing.T) {
	store := newMemStore()
	executor := &fakeExecutor{}
	router := newTestRouter(store, executor)

	result, err := router.Route(context.Background(), types.WorkItem{
		SourceEvent:   types.SourceRepoResync,
		JobType:       types.JobTypeEventSync,
		TargetID:      "octo/hello",
		TotalEstimate: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, types.LaneSlow, result.Lane)
	require.NotEmpty(t, result.JobID)
	assert.Empty(t, executor.calls)

	job, err := store.GetByID(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, job.Status)
	assert.EqualValues(t, 500, job.TotalEstimate)
	assert.Equal(t, 100, job.ChunkSize)
}

func TestRouteSlowLaneReusesLiveJob(t *testing.T) {
	router := newTestRouter(newMemStore(), &fakeExecutor{})
	item := types.WorkItem{
		SourceEvent: types.SourceRepoResync,
		JobType:     types.JobTypeEventSync,
		TargetID:    "octo/hello",
	}

	first, err := router.Route(context.Background(), item)
	require.NoError(t, err)
	second, err := router.Route(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, first.JobID, second.JobID)
}

func TestRoutePersistFailureIsRetryable(t *testing.T) {
	store := newMemStore()
	store.upsertErr = errors.New("connection refused")
	router := newTestRouter(store, &fakeExecutor{})

	_, err := router.Route(context.Background(), types.WorkItem{
		SourceEvent: types.SourceRepoResync,
		JobType:     types.JobTypeEventSync,
		TargetID:    "octo/hello",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRouteRejectsInvalidWork(t *testing.T) {
	router := newTestRouter(newMemStore(), &fakeExecutor{})

	_, err := router.Route(context.Background(), types.WorkItem{
		SourceEvent: types.SourceStatusUpdate,
		JobType:     types.JobType("mystery"),
		TargetID:    "octo/hello",
	})
	assert.Error(t, err)

	_, err = router.Route(context.Background(), types.WorkItem{
		SourceEvent: types.SourceStatusUpdate,
		JobType:     types.JobTypeEventSync,
	})
	assert.Error(t, err)
}
