package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrisnesbitt427/steplotto/internal/app"
	"github.com/chrisnesbitt427/steplotto/internal/seed"
)

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

	gen, err := seed.NewGenerator(a.Normalizer, cfg.SeedUsers, cfg.SeedMinSteps, cfg.SeedMaxSteps, cfg.Calendar(), seed.WithLogger(logger))
	if err != nil {
		logger.Error("invalid seed settings", "error", err)
		return
	}
	scheduler, err := seed.NewScheduler(gen, cfg.SeedSchedule, cfg.Location, time.Minute, logger)
	if err != nil {
		logger.Error("invalid seed schedule", "error", err)
		return
	}

	metricsSrv := app.ServeMetrics(cfg.MetricsAddress, logger)
	defer app.Shutdown(metricsSrv, 10*time.Second, logger)

	scheduler.Start()
	<-ctx.Done()
	scheduler.Stop()
}
