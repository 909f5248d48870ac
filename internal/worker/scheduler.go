package worker

import (
	"context"
	"sync"
	"time"

	"github.com/repo-ingest/internal/config"
	"github.com/repo-ingest/internal/logging"
	"github.com/repo-ingest/internal/models"
)

// RunnableLister yields the jobs worth considering on a tick
type RunnableLister interface {
	ListRunnable(ctx context.Context, limit int) ([]*models.JobRecord, error)
}

// Scheduler is the external re-invoker: on every tick it starts one
// ChunkWorker invocation per runnable job, bounded by a semaphore. Distinct
// jobs run concurrently; the per-job lease keeps each job single-writer.
type Scheduler struct {
	worker        *ChunkWorker
	lister        RunnableLister
	tickInterval  time.Duration
	maxConcurrent int
	batchSize     int

	running bool
	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler over the given worker
func NewScheduler(chunkWorker *ChunkWorker, lister RunnableLister, cfg config.SchedulerConfig) *Scheduler {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 5 * time.Second
	}
	maxConcurrent := cfg.MaxConcurrentJobs
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	batchSize := cfg.JobBatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	return &Scheduler{
		worker:        chunkWorker,
		lister:        lister,
		tickInterval:  tick,
		maxConcurrent: maxConcurrent,
		batchSize:     batchSize,
	}
}

// Start begins the tick loop in a background goroutine
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	logging.FromContext(ctx).WithField("tickInterval", s.tickInterval.String()).Info("Scheduler started")

	go s.loop(ctx)
}

// Stop halts the tick loop and waits for in-flight chunks to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// runTick runs one chunk for every runnable job, bounded by the semaphore.
// Waits for the batch so a slow tick never stacks on top of the next one.
func (s *Scheduler) runTick(ctx context.Context) {
	logger := logging.FromContext(ctx)

	jobs, err := s.lister.ListRunnable(ctx, s.batchSize)
	if err != nil {
		logger.WithError(err).Warn("Failed to list runnable jobs")
		return
	}
	if len(jobs) == 0 {
		return
	}

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup

	for _, jobRec := range jobs {
		select {
		case <-s.stopCh:
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(jobID string) {
			defer wg.Done()
			defer func() { <-sem }()

			result := s.worker.RunOnce(ctx, jobID)
			if !result.Success && !result.NoOp {
				logger.WithFields(map[string]interface{}{
					"jobId":     jobID,
					"errorKind": string(result.ErrorKind),
				}).Warn("Chunk run failed")
			}
		}(jobRec.ID)
	}

	wg.Wait()
}
