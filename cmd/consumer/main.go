package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/chrisnesbitt427/steplotto/internal/app"
	"github.com/chrisnesbitt427/steplotto/internal/config"
	"github.com/chrisnesbitt427/steplotto/internal/consumer"
)

func main() {
	cfg, logger, err := app.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("consumer stopped with error", "topic", cfg.SubmissionTopic, "error", err)
		os.Exit(1)
	}
	logger.Info("consumer shutdown complete")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	metricsSrv := app.ServeMetrics(cfg.MetricsAddress, logger)
	defer app.Shutdown(metricsSrv, 10*time.Second, logger)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.SubmissionTopic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	handler := consumer.NewSubmissionHandler(a.Normalizer, logger)
	proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger.With("component", "consumer")))

	logger.Info("consumer started", "topic", cfg.SubmissionTopic, "group", cfg.ConsumerGroupID)
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
