package job

import (
	"context"
	"fmt"

	"github.com/repo-ingest/internal/config"
	apperrors "github.com/repo-ingest/internal/errors"
	"github.com/repo-ingest/internal/logging"
	"github.com/repo-ingest/internal/types"
)

// Executor runs fast-lane work synchronously on the request host.
// Injectable so the routing logic stays portable across runtimes.
type Executor interface {
	ExecuteInline(ctx context.Context, item types.WorkItem) (interface{}, error)
}

// RouteResult is what the caller gets back from a routed work item
type RouteResult struct {
	Lane   types.Lane  `json:"processingMode"`
	JobID  string      `json:"jobId,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// Router classifies inbound work into the fast or slow lane. Fast work runs
// inline through the executor; slow work materializes exactly one queued job
// record per (jobType, targetId).
type Router struct {
	store            JobStore
	executor         Executor
	fanOutThreshold  int
	defaultChunkSize int
}

// NewRouter creates a router over the given store and fast-lane executor
func NewRouter(store JobStore, executor Executor, routerCfg config.RouterConfig, progressCfg config.ProgressConfig) *Router {
	threshold := routerCfg.FanOutThreshold
	if threshold <= 0 {
		threshold = 10
	}
	chunkSize := progressCfg.DefaultChunkSize
	if chunkSize <= 0 {
		chunkSize = 100
	}

	return &Router{
		store:            store,
		executor:         executor,
		fanOutThreshold:  threshold,
		defaultChunkSize: chunkSize,
	}
}

// Classify decides the lane for a work item. Pure function of the item: a
// static table per source event kind, overridden to the slow lane when the
// fan-out exceeds the threshold so one wide webhook cannot stall a
// synchronous handler.
func (r *Router) Classify(item types.WorkItem) types.Lane {
	if item.AffectedTargetCount > r.fanOutThreshold {
		return types.LaneSlow
	}

	switch item.SourceEvent {
	case types.SourceStatusUpdate, types.SourceWebhookPush:
		return types.LaneFast
	case types.SourceRepoResync, types.SourceBackfillRequest:
		return types.LaneSlow
	default:
		// Unknown kinds are assumed long-running
		return types.LaneSlow
	}
}

// Route classifies and dispatches one work item. A slow-lane persistence
// failure surfaces as a retryable error; work is never silently dropped.
func (r *Router) Route(ctx context.Context, item types.WorkItem) (*RouteResult, error) {
	if !item.JobType.Valid() {
		return nil, apperrors.NewFatal(fmt.Sprintf("unknown job type %q", item.JobType), nil)
	}
	if item.TargetID == "" {
		return nil, apperrors.NewFatal("work item has no target", nil)
	}

	lane := r.Classify(item)
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"sourceEvent": string(item.SourceEvent),
		"jobType":     string(item.JobType),
		"targetId":    item.TargetID,
		"lane":        string(lane),
	})

	if lane == types.LaneFast {
		result, err := r.executor.ExecuteInline(ctx, item)
		if err != nil {
			return nil, err
		}
		logger.Debug("Work item executed inline")
		return &RouteResult{Lane: types.LaneFast, Result: result}, nil
	}

	job, err := r.store.UpsertQueued(ctx, item.JobType, item.TargetID, item.TotalEstimate, r.defaultChunkSize)
	if err != nil {
		return nil, apperrors.NewTransient("failed to enqueue job", err)
	}

	logger.WithField("jobId", job.ID).Info("Work item enqueued")
	return &RouteResult{Lane: types.LaneSlow, JobID: job.ID}, nil
}
