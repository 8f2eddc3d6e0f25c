package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kharcha/internal/amqp"
	"kharcha/internal/budget"
	"kharcha/internal/classify"
	"kharcha/internal/config"
	"kharcha/internal/dupe"
	apphttp "kharcha/internal/http"
	"kharcha/internal/ledger"
	applog "kharcha/internal/log"
	"kharcha/internal/parse"
	"kharcha/internal/services"
	gsheet "kharcha/internal/sheets/google"
	mem "kharcha/internal/sheets/memory"
	"kharcha/internal/storage"
)

func main() {
	// Load .env for local development; absent file is fine.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	loc := cfg.Location()

	var ledgerStore ledger.Store
	var budgetStore budget.Store
	switch cfg.DataBackend {
	case "sheets":
		cli, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		ledgerStore, budgetStore = cli, cli
		logger.Info("Initialized Google Sheets backend")
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		ledgerStore, budgetStore = repo, repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		store := mem.New()
		ledgerStore, budgetStore = store, store
		logger.Info("Initialized memory backend")
	}

	var publisher services.BudgetPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("Budget accumulation via AMQP", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, budget accumulation runs inline")
	}

	retry := ledger.RetryConfig{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	tracker := services.NewTracker(
		parse.New(loc, time.Now),
		classify.Default(),
		dupe.New(cfg.DuplicateWindow, time.Now),
		ledger.NewWriter(ledgerStore, loc, time.Now, retry),
		budget.NewAggregator(budgetStore, cfg.TargetsCacheTTL, time.Now),
		publisher,
		loc,
		time.Now,
	)

	srv := apphttp.NewServer(":"+cfg.Port, tracker, cfg.SenderRateLimit,
		logger.WithComponent(applog.ComponentHTTP))
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting kharcha server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.TimezoneName)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
