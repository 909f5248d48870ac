// Package adapter wraps the upstream GitHub REST API behind a narrow paging
// interface. The core only needs pagination plus rate-limit telemetry.
package adapter

import (
	"context"

	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/types"
)

// PageRequest identifies one upstream page fetch
type PageRequest struct {
	JobType  types.JobType
	TargetID string // "owner/repo"
	Cursor   string // opaque; empty means first page
	PageSize int
}

// RawPage is the result of a single page fetch
type RawPage struct {
	Items      []*models.Event
	NextCursor string // cursor for the following page; empty when HasNext is false
	HasNext    bool
	Snapshot   types.RateLimitSnapshot
}

// PageFetcher fetches exactly one upstream page per call. Implementations
// hold no pagination state; the caller persists the cursor between calls.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (*RawPage, error)
}
