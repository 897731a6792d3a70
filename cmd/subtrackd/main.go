package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"subtrack/internal/aggregate"
	"subtrack/internal/amqp"
	"subtrack/internal/config"
	"subtrack/internal/core"
	"subtrack/internal/currency"
	apphttp "subtrack/internal/http"
	applog "subtrack/internal/log"
	"subtrack/internal/rates"
	"subtrack/internal/services"
	"subtrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup("subtrackd")
	logger.Info("Starting subtrackd")

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collection := core.NewCollection()
	rateStore := currency.NewRateStore()

	// Seed the rate store from the last persisted snapshot; conversions
	// degrade to identity until the first refresh otherwise.
	if table, err := repo.LoadRateTable(ctx); err != nil {
		logger.Warn("Failed to load persisted exchange rates", "error", err)
	} else if len(table.Rates) > 0 {
		rateStore.Set(table)
		logger.Info("Exchange rates loaded", "base", table.Base, "count", len(table.Rates))
	}

	// AMQP is optional; without it the mirror worker relies on its
	// pending-row sweep.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized")
		}
	}

	subscriptionService := services.NewSubscriptionService(repo, collection, publisher, cfg.UndoWindow)
	if err := subscriptionService.LoadFromStorage(ctx); err != nil {
		logger.Error("Failed to load subscriptions", "error", err)
		os.Exit(1)
	}

	displayCurrency, err := repo.GetSetting(ctx, "display_currency", cfg.DisplayCurrency)
	if err != nil {
		logger.Warn("Failed to read display currency setting", "error", err)
		displayCurrency = cfg.DisplayCurrency
	}
	aggregator := aggregate.New(collection, rateStore, displayCurrency)

	srv := apphttp.NewServer(":"+cfg.Port, subscriptionService, aggregator, rateStore, repo)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "port", cfg.Port, "display_currency", displayCurrency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.RatesAPIURL != "" {
		client := rates.NewClient(cfg.RatesAPIURL, cfg.RatesBaseCurrency)
		g.Go(func() error {
			refreshRates(ctx, client, rateStore, repo)

			ticker := time.NewTicker(cfg.RatesRefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					refreshRates(ctx, client, rateStore, repo)
				}
			}
		})
	} else {
		logger.Info("Rates refresh disabled - no RATES_API_URL provided")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// refreshRates fetches a new snapshot and swaps it in. Failures keep the
// previous table so conversions never stop working.
func refreshRates(ctx context.Context, client *rates.Client, store *currency.RateStore, repo *storage.Repository) {
	table, err := client.Fetch(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Exchange rate refresh failed, keeping previous table", "error", err)
		return
	}

	store.Set(table)
	if err := repo.SaveRateTable(ctx, table); err != nil {
		slog.WarnContext(ctx, "Failed to persist exchange rates", "error", err)
	}
	slog.InfoContext(ctx, "Exchange rates refreshed", "base", table.Base, "count", len(table.Rates))
}
