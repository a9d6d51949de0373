// Package app assembles the configured store and services shared by every binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrisnesbitt427/steplotto/internal/config"
	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/ingest"
	"github.com/chrisnesbitt427/steplotto/internal/ledger"
	"github.com/chrisnesbitt427/steplotto/internal/logging"
	"github.com/chrisnesbitt427/steplotto/internal/lottery"
	"github.com/chrisnesbitt427/steplotto/internal/persistence/memory"
	"github.com/chrisnesbitt427/steplotto/internal/persistence/migrations"
	"github.com/chrisnesbitt427/steplotto/internal/persistence/postgres"
	"github.com/chrisnesbitt427/steplotto/internal/registry"
)

// App holds the wired services.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Pool       *pgxpool.Pool
	Ledger     *ledger.Service
	Registry   *registry.Service
	Engine     *lottery.Engine
	Normalizer *ingest.Normalizer
}

// LoadConfig loads configuration and builds the process logger from it.
func LoadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// New connects the configured store and builds the services on top of it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	var (
		ledgerStore   domain.LedgerStore
		registryStore domain.RegistryStore
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store := memory.NewStore()
		ledgerStore, registryStore = store, store
		logger.Warn("using in-memory store; data is lost on exit")
	default:
		if cfg.AutoMigrate {
			if err := migrations.Up(ctx, cfg.PostgresURL); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied")
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.Pool = pool
		store := postgres.NewStore(pool)
		ledgerStore, registryStore = store, store
	}

	a.wire(ledgerStore, registryStore)
	return a, nil
}

// FromStores builds an App over already constructed stores.
func FromStores(cfg config.Config, logger *slog.Logger, ledgerStore domain.LedgerStore, registryStore domain.RegistryStore) *App {
	a := &App{Config: cfg, Logger: logger}
	a.wire(ledgerStore, registryStore)
	return a
}

func (a *App) wire(ledgerStore domain.LedgerStore, registryStore domain.RegistryStore) {
	cfg, logger := a.Config, a.Logger
	a.Ledger = ledger.NewService(ledgerStore,
		ledger.WithTimeout(cfg.StoreTimeout),
		ledger.WithChunkSize(cfg.LedgerChunkSize),
		ledger.WithLogger(logger),
	)
	a.Registry = registry.NewService(registryStore,
		registry.WithTimeout(cfg.StoreTimeout),
		registry.WithLogger(logger),
	)
	a.Engine = lottery.NewEngine(a.Ledger, a.Registry, cfg.Stake(), logger)
	a.Normalizer = ingest.NewNormalizer(a.Ledger, logger)
}

// RequirePool fails when the app runs without Postgres.
func (a *App) RequirePool(feature string) (*pgxpool.Pool, error) {
	if a.Pool == nil {
		return nil, fmt.Errorf("%s requires STORE_DRIVER=%s", feature, config.DriverPostgres)
	}
	return a.Pool, nil
}

// Close releases the connection pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// ServeMetrics exposes /metrics on addr until the returned server is shut down.
func ServeMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops srv, waiting at most timeout.
func Shutdown(srv *http.Server, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
