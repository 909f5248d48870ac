package storage

import (
	"context"
	"fmt"

	"github.com/repo-ingest/internal/models"
)

// EventRepository handles ingested GitHub events in ClickHouse.
// The backing table is a ReplacingMergeTree keyed by event_id, so re-inserting
// a chunk after a crash is harmless: duplicates collapse on merge.
type EventRepository struct {
	db *ClickHouseDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *ClickHouseDB) *EventRepository {
	return &EventRepository{db: db}
}

// BatchInsert inserts a chunk of events in one batch. Events the ingestion
// filter marks irrelevant are skipped; duplicate event ids within the batch
// are collapsed before sending.
func (r *EventRepository) BatchInsert(ctx context.Context, events []*models.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO github_events (
			event_id, event_type, actor_login, repo_owner, repo_name,
			payload, created_at, ingested_at
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	seen := make(map[string]bool, len(events))
	inserted := 0

	for _, event := range events {
		if !event.Relevant() || seen[event.EventID] {
			continue
		}
		seen[event.EventID] = true

		payload := event.Payload
		if len(payload) == 0 {
			payload = []byte("{}")
		}

		err := batch.Append(
			event.EventID,
			event.EventType,
			event.ActorLogin,
			event.RepoOwner,
			event.RepoName,
			string(payload),
			event.CreatedAt,
			event.IngestedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append event %s: %w", event.EventID, err)
		}
		inserted++
	}

	if inserted == 0 {
		return 0, batch.Abort()
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to insert events: %w", err)
	}

	return inserted, nil
}

// CountByTarget returns the number of stored events for a repository target
func (r *EventRepository) CountByTarget(ctx context.Context, repoOwner, repoName string) (uint64, error) {
	query := `
		SELECT count(DISTINCT event_id)
		FROM github_events
		WHERE repo_owner = ? AND repo_name = ?
	`

	var count uint64
	if err := r.db.Conn().QueryRow(ctx, query, repoOwner, repoName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}
