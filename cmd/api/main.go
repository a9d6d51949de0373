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

	"github.com/chrisnesbitt427/steplotto/internal/api"
	"github.com/chrisnesbitt427/steplotto/internal/app"
	"github.com/chrisnesbitt427/steplotto/internal/auth"
	"github.com/chrisnesbitt427/steplotto/internal/outbox"
	httptransport "github.com/chrisnesbitt427/steplotto/internal/transport/http"
)

func main() {
	cfg, logger, err := app.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var dispatcher *outbox.Dispatcher
	if cfg.OutboxEnabled && a.Pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(a.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, outbox.WithLogger(logger))
		go dispatcher.Start(ctx)
	}

	handler := api.NewHandler(a.Normalizer, a.Registry, a.Engine, a.Ledger, api.Options{
		Auth:           auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		Calendar:       cfg.Calendar(),
		Currency:       cfg.Currency,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		IngestLimiter: httptransport.NewRateLimiter(httptransport.RateLimitConfig{
			RequestsPerSecond: cfg.IngestRateRPS,
			Burst:             cfg.IngestRateBurst,
		}),
		Logger: logger,
	})

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), handler.Routes())

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("steplotto api listening", "addr", cfg.HTTPAddress, "store", cfg.StoreDriver, "week_start", string(cfg.Week))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			shutdownCh <- syscall.SIGTERM
		}
	}()

	<-shutdownCh
	cancel()

	app.Shutdown(server, 15*time.Second, logger)
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
