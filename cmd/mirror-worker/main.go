package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"subtrack/internal/amqp"
	"subtrack/internal/config"
	applog "subtrack/internal/log"
	"subtrack/internal/mirror"
	gsheet "subtrack/internal/mirror/google"
	"subtrack/internal/mirror/memory"
	"subtrack/internal/storage"
	"subtrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup("mirror-worker")
	logger.Info("Starting mirror-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Google Sheets is the production mirror; without a spreadsheet ID the
	// worker falls back to an in-memory mirror, which keeps the pending
	// queue draining in local development.
	var (
		writer  mirror.Writer
		deleter mirror.Deleter
	)
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer, deleter = client, client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		store := memory.New()
		writer, deleter = store, store
		logger.Info("In-memory mirror initialized - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(repo, writer, deleter, cfg.MirrorBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recover anything missed while the worker was down.
	if err := mirrorWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup mirror check failed", "error", err)
		// Keep going; the periodic sweep retries.
	}

	go func() {
		err := worker.ConsumeWithRecovery(ctx, amqpClient, func(msg *amqp.SubscriptionEventMessage) error {
			return mirrorWorker.HandleEvent(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption failed permanently", "error", err)
			cancel()
		}
	}()

	// Periodic sweep for rows whose event was lost.
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := mirrorWorker.ProcessPending(ctx); err != nil {
					logger.Error("Periodic mirror sweep failed", "error", err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Mirror-worker shutdown complete")
}
