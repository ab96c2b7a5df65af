package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xreader/feed-service/internal/config"
	"github.com/xreader/feed-service/internal/storage/postgres"
)

// RepairWorker periodically walks the posts table and repairs repost
// references: dangling original ids are cleared and repost-of-repost
// chains are collapsed onto the true original. The service self-heals
// the same cases lazily on read; the worker keeps the backlog bounded.
type RepairWorker struct {
	storage  *postgres.Postgres
	interval time.Duration
	logger   *slog.Logger
}

func NewRepairWorker(storage *postgres.Postgres, interval time.Duration) *RepairWorker {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &RepairWorker{
		storage:  storage,
		interval: interval,
		logger:   logger,
	}
}

func (rw *RepairWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("Repair worker started",
		"interval", rw.interval.String())

	// Run once immediately on startup
	rw.repairRepostRefs()

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("Repair worker shutting down")
			return
		case <-ticker.C:
			rw.repairRepostRefs()
		}
	}
}

func (rw *RepairWorker) repairRepostRefs() {
	startTime := time.Now()

	rw.logger.Info("Starting repost reference repair")

	count, err := rw.storage.FlattenRepostChains()
	if err != nil {
		rw.logger.Error("Failed to repair repost references",
			"error", err.Error(),
			"duration_ms", time.Since(startTime).Milliseconds())
		return
	}

	duration := time.Since(startTime)

	rw.logger.Info("Completed repost reference repair",
		"posts_repaired", count,
		"duration_ms", duration.Milliseconds(),
		"duration", duration.String())
}

func main() {
	// Load config
	cfg := config.MustLoad()

	// Initialize database connection
	storage, err := postgres.NewPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	slog.Info("Connected to Postgres database")

	// Create worker with 1-minute interval
	worker := NewRepairWorker(storage, time.Minute)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	// Start the worker
	worker.Start(ctx)

	slog.Info("Repair worker stopped")
}
