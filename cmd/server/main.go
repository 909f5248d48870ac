// Package main provides the API server entry point: the fast-lane host and
// the job administration surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/repo-ingest/internal/adapter"
	"github.com/repo-ingest/internal/api"
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

	logger.Info("Database connections established")

	jobRepo := storage.NewJobRepository(postgres)
	eventRepo := storage.NewEventRepository(clickhouse)

	github := adapter.NewGitHubClient(cfg.GitHub)
	chunkPager := pager.NewRateLimitedPager(github, cfg.Pager)

	executor := worker.NewInlineSyncExecutor(chunkPager, eventRepo, cfg.Progress.DefaultChunkSize)
	workRouter := job.NewRouter(jobRepo, executor, cfg.Router, cfg.Progress)
	tracker := job.NewProgressTracker(jobRepo, cfg.Progress)

	server := api.NewServer(&api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: 10 * time.Second,
	}, workRouter, tracker, jobRepo)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}

	logger.Info("Server stopped")
}
