package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"subtrack/internal/amqp"
	"subtrack/internal/config"
	applog "subtrack/internal/log"
	"subtrack/internal/services"
	"subtrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup("renewal-worker")
	logger.Info("Starting renewal-worker")

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

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "renewal_notifications")
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	processor := services.NewRenewalProcessor(repo, amqpClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run once at startup so downtime across a billing day is caught up.
	logger.Info("Running initial renewal check")
	if count, err := processor.ProcessDueRenewals(ctx, time.Now()); err != nil {
		logger.Error("Initial renewal check failed", "error", err)
	} else {
		logger.Info("Initial renewal check complete", "notified", count)
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.RenewalCron, func() {
		now := time.Now()
		count, err := processor.ProcessDueRenewals(ctx, now)
		if err != nil {
			logger.Error("Scheduled renewal check failed", "error", err)
			return
		}
		logger.Info("Scheduled renewal check complete",
			"notified", count,
			"run_at", now.Format(time.RFC3339))
	})
	if err != nil {
		logger.Error("Failed to schedule renewal check", "error", err, "cron", cfg.RenewalCron)
		os.Exit(1)
	}

	scheduler.Start()
	logger.Info("Renewal scheduler started", "cron", cfg.RenewalCron)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	cancel()
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
		logger.Info("Renewal-worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
