package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stocklinehq/stockledger-backend/internal/availability"
	"github.com/stocklinehq/stockledger-backend/internal/catalog"
	"github.com/stocklinehq/stockledger-backend/internal/ledger"
	"github.com/stocklinehq/stockledger-backend/internal/movements"
	"github.com/stocklinehq/stockledger-backend/pkg/config"
	"github.com/stocklinehq/stockledger-backend/pkg/db"
	"github.com/stocklinehq/stockledger-backend/pkg/logger"
	"github.com/stocklinehq/stockledger-backend/pkg/metrics"
	"github.com/stocklinehq/stockledger-backend/pkg/migrate"
	"github.com/stocklinehq/stockledger-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "stockledger"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "stockledger",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	movementMetrics := metrics.NewMovementMetrics(registry)

	ledgerRepo := ledger.NewRepository(dbClient.DB())

	availabilityParams := availability.ServiceParams{
		Ledger:   ledgerRepo,
		Logger:   logg,
		CacheTTL: cfg.Engine.AvailabilityCacheTTL,
	}
	if redisClient != nil {
		availabilityParams.Cache = redisClient
	}
	availabilityService, err := availability.NewService(availabilityParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability service", err)
		os.Exit(1)
	}

	// Engine operations are invoked in-process by embedding callers; the
	// daemon wires the full graph at boot so misconfiguration fails here
	// rather than on the first movement.
	_, err = movements.NewService(movements.ServiceParams{
		TxRunner:         dbClient,
		Catalog:          catalog.NewGateway(dbClient.DB()),
		Ledger:           ledgerRepo,
		Records:          movements.NewRepository(dbClient.DB()),
		Metrics:          movementMetrics,
		Logger:           logg,
		Cache:            availabilityService,
		MaxApplyAttempts: cfg.Engine.MaxApplyAttempts,
		RetryBaseBackoff: cfg.Engine.RetryBaseBackoff,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create movement service", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.MetricsPort
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting metrics listener")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbClient.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()); err != nil {
				http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logg.Error(ctx, "metrics listener stopped unexpectedly", err)
		os.Exit(1)
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error shutting down metrics listener", err)
	}
	logg.Info(ctx, "shutdown complete")
}
