package job

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "github.com/repo-ingest/internal/errors"
	"github.com/repo-ingest/internal/types"
)

// Property-based check over arbitrary chunk outcome sequences: the counter
// invariants and the status set must hold after every single step.
func TestProgressTrackerInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	validStatuses := map[types.JobStatus]bool{
		types.StatusQueued:    true,
		types.StatusActive:    true,
		types.StatusPaused:    true,
		types.StatusCompleted: true,
		types.StatusFailed:    true,
	}

	properties.Property("counters stay consistent under any outcome sequence", prop.ForAll(
		func(ops []int) bool {
			store := newMemStore()
			seeded := store.seed(queuedJob(1000))
			tracker := NewProgressTracker(store, testProgressConfig())
			ctx := context.Background()

			var lastProcessed int64
			page := 1

			for _, op := range ops {
				switch op {
				case 0:
					page++
					tracker.RecordSuccess(ctx, seeded.ID, Advance{
						Processed: 50,
						NewCursor: strconv.Itoa(page),
					})
				case 1:
					tracker.RecordError(ctx, seeded.ID, apperrors.NewTransient("blip", nil))
				case 2:
					tracker.RecordError(ctx, seeded.ID, apperrors.NewRateLimited("quota", time.Now().Add(time.Hour)))
				}

				job, err := store.GetByID(ctx, seeded.ID)
				if err != nil {
					return false
				}
				if job.ConsecutiveErrorCount > job.ErrorCount {
					return false
				}
				if job.ProcessedCount < lastProcessed {
					return false
				}
				if job.TotalEstimate > 0 && job.ProcessedCount > job.TotalEstimate {
					return false
				}
				if !validStatuses[job.Status] {
					return false
				}
				lastProcessed = job.ProcessedCount
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	properties.Property("cursor advances strictly across successful chunks", prop.ForAll(
		func(chunks int) bool {
			store := newMemStore()
			seeded := store.seed(queuedJob(0))
			tracker := NewProgressTracker(store, testProgressConfig())
			ctx := context.Background()

			prev := 0
			for page := 2; page < 2+chunks; page++ {
				job, err := tracker.RecordSuccess(ctx, seeded.ID, Advance{
					Processed: 10,
					NewCursor: strconv.Itoa(page),
				})
				if err != nil {
					return false
				}
				cursor, err := strconv.Atoi(job.Cursor)
				if err != nil || cursor <= prev {
					return false
				}
				prev = cursor
			}
			return true
		},
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}
