package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	apperrors "github.com/repo-ingest/internal/errors"
)

// releaseScript deletes the lease only when the caller still owns it, so an
// expired lease taken over by another worker is never released from under it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// JobLock enforces the single in-flight worker rule per job id with a Redis
// lease. The TTL bounds how long a crashed worker can block its job.
type JobLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJobLock creates a job lock manager
func NewJobLock(client *redis.Client, ttl time.Duration) *JobLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &JobLock{client: client, ttl: ttl}
}

// Lease represents an acquired per-job lease
type Lease struct {
	lock  *JobLock
	key   string
	token string
}

func lockKey(jobID string) string {
	return "ingest:joblock:" + jobID
}

// Acquire takes the lease for jobID. A second concurrent acquisition returns
// a lock-contention error, which callers treat as a no-op, not a failure.
func (l *JobLock) Acquire(ctx context.Context, jobID string) (*Lease, error) {
	token := uuid.New().String()
	key := lockKey(jobID)

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire job lease: %w", err)
	}
	if !ok {
		return nil, apperrors.NewLockContention(jobID)
	}

	return &Lease{lock: l, key: key, token: token}, nil
}

// Release gives the lease back. Releasing an expired or stolen lease is a
// silent no-op.
func (le *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, le.lock.client, []string{le.key}, le.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release job lease: %w", err)
	}
	return nil
}
