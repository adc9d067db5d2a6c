package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/blablabla-ai/blablabla/internal/config"
	"github.com/blablabla-ai/blablabla/internal/database"
	"github.com/blablabla-ai/blablabla/internal/history"
	"github.com/blablabla-ai/blablabla/internal/queue"
	"github.com/blablabla-ai/blablabla/internal/queue/workers"
	"github.com/blablabla-ai/blablabla/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	recs := history.NewStore(db)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	purgeWorker := workers.NewPurgeWorker(store, recs, cfg.Storage.Bucket)

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeRecordingPurge, asynq.HandlerFunc(purgeWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
