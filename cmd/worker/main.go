package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tahfidz/internal/config"
	"tahfidz/internal/gateway"
	"tahfidz/internal/journal"
	"tahfidz/internal/logging"
	"tahfidz/internal/queue"
	"tahfidz/internal/store"
)

// Worker consumes sync messages, pushes each journal entry to the
// spreadsheet and records the outcome.
func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Production())
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" || cfg.JournalBackend != "postgres" {
		logger.Warn("standalone worker needs the redis queue and the postgres journal to see API writes",
			zap.String("queue", cfg.QueueBackend),
			zap.String("journal", cfg.JournalBackend))
	}

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		logger.Warn("redis not reachable yet", zap.String("addr", cfg.RedisAddr))
	}

	js, closeJournal, err := journal.Open(ctx, cfg.JournalBackend, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("journal open failed", zap.Error(err))
	}
	defer closeJournal()

	q, err := queue.Open(cfg.QueueBackend, rdb)
	if err != nil {
		logger.Fatal("queue open failed", zap.Error(err))
	}

	gw := gateway.New(cfg.ScriptURL, cfg.ScriptTimeout, logger.Named("gateway"))
	gw.Token = cfg.SheetToken
	gw.Backoff.Retries = cfg.SyncRetries
	gw.Backoff.Initial = cfg.SyncBackoff
	if !gw.Configured() {
		logger.Warn("SCRIPT_URL not set, entries will be marked offline")
	}

	syncer := journal.NewSyncer(js, q, gw, logger.Named("sync"))
	if n, err := syncer.Requeue(ctx); err != nil {
		logger.Warn("requeue failed", zap.Error(err))
	} else {
		logger.Info("worker ready", zap.Int("requeued", n))
	}

	if err := syncer.Run(ctx); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
}
