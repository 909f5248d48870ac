// Package pager advances a rate-limited upstream feed one page per call.
// Pagination state lives with the caller; the pager only owns pacing.
package pager

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/repo-ingest/internal/adapter"
	"github.com/repo-ingest/internal/config"
	apperrors "github.com/repo-ingest/internal/errors"
	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/types"
)

// Chunk is the result of one page advance
type Chunk struct {
	Items     []*models.Event
	NewCursor string // cursor to persist for the next chunk; empty when Exhausted
	Snapshot  types.RateLimitSnapshot
	// Exhausted means the upstream reported no further pages. This is the
	// normal completion signal for a job.
	Exhausted bool
	// SuggestedDelay asks the caller to wait before the next chunk when the
	// remaining quota dips below the low-water mark. Zero means no throttling.
	SuggestedDelay time.Duration
}

// RateLimitedPager wraps a PageFetcher with self-throttling and quota
// awareness. Safe for concurrent use across jobs; the limiter is shared so
// the process as a whole stays under the request ceiling.
type RateLimitedPager struct {
	fetcher           adapter.PageFetcher
	limiter           *rate.Limiter
	lowWaterFraction  float64
	maxSuggestedDelay time.Duration
}

// NewRateLimitedPager creates a pager over the given fetcher
func NewRateLimitedPager(fetcher adapter.PageFetcher, cfg config.PagerConfig) *RateLimitedPager {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2.0
	}
	lowWater := cfg.LowWaterFraction
	if lowWater <= 0 {
		lowWater = 0.10
	}
	maxDelay := cfg.MaxSuggestedDelay
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}

	return &RateLimitedPager{
		fetcher:           fetcher,
		limiter:           rate.NewLimiter(rate.Limit(rps), 1),
		lowWaterFraction:  lowWater,
		maxSuggestedDelay: maxDelay,
	}
}

// NextChunk performs exactly one upstream page fetch. The caller supplies and
// persists the cursor. Quota exhaustion after the fetch surfaces as a
// rate-limited error carrying the reset time.
func (p *RateLimitedPager) NextChunk(ctx context.Context, jobType types.JobType, targetID, cursor string, chunkSize int) (*Chunk, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewTransient("pacing wait interrupted", err)
	}

	page, err := p.fetcher.FetchPage(ctx, adapter.PageRequest{
		JobType:  jobType,
		TargetID: targetID,
		Cursor:   cursor,
		PageSize: chunkSize,
	})
	if err != nil {
		return nil, err
	}

	if page.Snapshot.Exhausted() {
		return nil, apperrors.NewRateLimited("upstream quota exhausted", page.Snapshot.ResetAt)
	}

	return &Chunk{
		Items:          page.Items,
		NewCursor:      page.NextCursor,
		Snapshot:       page.Snapshot,
		Exhausted:      !page.HasNext,
		SuggestedDelay: p.suggestedDelay(page.Snapshot),
	}, nil
}

// suggestedDelay spreads the remaining quota over the rest of the reset
// window once it falls below the low-water mark
func (p *RateLimitedPager) suggestedDelay(s types.RateLimitSnapshot) time.Duration {
	if s.Limit <= 0 {
		return 0
	}
	if float64(s.Remaining) >= p.lowWaterFraction*float64(s.Limit) {
		return 0
	}

	window := time.Until(s.ResetAt)
	if window <= 0 {
		return 0
	}

	delay := window / time.Duration(s.Remaining+1)
	if delay > p.maxSuggestedDelay {
		delay = p.maxSuggestedDelay
	}
	return delay
}
