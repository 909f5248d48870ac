package worker

import (
	"context"

	"github.com/repo-ingest/internal/types"
)

// InlineSyncExecutor runs fast-lane work synchronously on the request host:
// one bounded page fetch ingested on the spot, no job record. Anything
// heavier belongs on the slow lane.
type InlineSyncExecutor struct {
	pager     ChunkPager
	events    EventStore
	chunkSize int
}

// NewInlineSyncExecutor creates the fast-lane executor
func NewInlineSyncExecutor(chunkPager ChunkPager, events EventStore, chunkSize int) *InlineSyncExecutor {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &InlineSyncExecutor{
		pager:     chunkPager,
		events:    events,
		chunkSize: chunkSize,
	}
}

// ExecuteInline fetches and ingests the first page for the target
func (e *InlineSyncExecutor) ExecuteInline(ctx context.Context, item types.WorkItem) (interface{}, error) {
	chunk, err := e.pager.NextChunk(ctx, item.JobType, item.TargetID, "", e.chunkSize)
	if err != nil {
		return nil, err
	}

	written := 0
	if len(chunk.Items) > 0 {
		written, err = e.events.BatchInsert(ctx, chunk.Items)
		if err != nil {
			return nil, err
		}
	}

	return map[string]interface{}{
		"fetched":   len(chunk.Items),
		"written":   written,
		"exhausted": chunk.Exhausted,
	}, nil
}
