package models

import (
	"encoding/json"
	"time"
)

// Event represents an ingested GitHub item in the analytics store.
// EventID is the natural key; writes are idempotent on it.
type Event struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	ActorLogin string          `json:"actorLogin"`
	RepoOwner  string          `json:"repoOwner"`
	RepoName   string          `json:"repoName"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
	IngestedAt time.Time       `json:"ingestedAt"`
}

// RelevantEventTypes lists the upstream event kinds worth ingesting.
// Everything else on the events feed is noise for the analytics tables.
var RelevantEventTypes = map[string]bool{
	"WatchEvent":       true,
	"ForkEvent":        true,
	"PullRequestEvent": true,
	"IssuesEvent":      true,
	"StarEvent":        true,
}

// Relevant reports whether the event should be persisted
func (e *Event) Relevant() bool {
	return RelevantEventTypes[e.EventType]
}
