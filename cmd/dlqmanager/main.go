package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrisnesbitt427/steplotto/internal/app"
	"github.com/chrisnesbitt427/steplotto/internal/outbox"
)

const defaultDLQBatchSize = 50

func main() {
	cfg, logger, err := app.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	pool, err := a.RequirePool("dlq manager")
	if err != nil {
		logger.Error("startup failed", "error", err)
		return
	}

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := app.ServeMetrics(cfg.MetricsAddress, logger)
	defer app.Shutdown(metricsSrv, 10*time.Second, logger)

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	logger.Info("dlq manager started", "interval", cfg.DLQPollInterval, "max_retries", cfg.DLQMaxRetries)

	for {
		select {
		case <-ctx.Done():
			logger.Info("dlq manager received shutdown signal")
			return
		case <-ticker.C:
			processed, err := manager.RunOnce(ctx, defaultDLQBatchSize)
			if err != nil {
				logger.Error("dlq manager error", "error", err)
			} else if processed > 0 {
				logger.Info("dlq manager processed entries", "count", processed)
			}
		}
	}
}
