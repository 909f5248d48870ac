// Package main provides the worker entry point: the slow-lane host that
// advances queued and active jobs one chunk at a time on a schedule.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/repo-ingest/internal/adapter"
	"github.com/repo-ingest/internal/config"
	"github.com/repo-ingest/internal/job"
	"github.com/repo-ingest/internal/logging"
	"github.com/repo-ingest/internal/pager"
	"github.com/repo-ingest/internal/storage"
	"github.com/repo-ingest/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redisCache, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	logger.Info("Database connections established")

	jobRepo := storage.NewJobRepository(postgres)
	eventRepo := storage.NewEventRepository(clickhouse)
	locks := storage.NewJobLock(redisCache.Client(), cfg.Scheduler.LeaseTTL)

	github := adapter.NewGitHubClient(cfg.GitHub)
	chunkPager := pager.NewRateLimitedPager(github, cfg.Pager)

	tracker := job.NewProgressTracker(jobRepo, cfg.Progress)
	chunkWorker := worker.NewChunkWorker(tracker, chunkPager, eventRepo, locks)
	scheduler := worker.NewScheduler(chunkWorker, jobRepo, cfg.Scheduler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")
	cancel()
	scheduler.Stop()
	logger.Info("Worker stopped")
}
