// Package main is the entry point for the stockledger API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/infrastructure/broadcast"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $"+config.EnvConfigPath+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Errorw("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Infow("starting stockledger server", "version", version, "store", cfg.Database.Store)

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := broadcast.NewHub(broadcast.Config{
		BufferSize: cfg.Broadcast.BufferSize,
		Metrics:    broadcast.NewMetrics(registry),
	})
	hub.Start()

	engine := store.Engine(cfg, hub)

	routerCfg := v1.RouterConfig{
		Engine:            engine,
		Hub:               hub,
		Logger:            log,
		Gatherer:          registry,
		EventWriteTimeout: cfg.HTTP.WriteTimeout,
		Development:       cfg.IsDevelopment(),
		Health: handlers.HealthConfig{
			Store:       store,
			StoreKind:   store.Kind,
			Version:     version,
			PoolStats:   store.PoolStats,
			Subscribers: hub.Count,
		},
	}
	if cfg.Idempotency.Enabled {
		routerCfg.Idempotency = store.Idempotency
	}

	// No WriteTimeout: it would cut long-lived event streams. Each event
	// write has its own deadline instead.
	server := &http.Server{
		Addr:        cfg.HTTP.Addr(),
		Handler:     v1.NewHandler(routerCfg),
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		store.RunMaintenance(gctx, cfg)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		// Shutdown does not track hijacked websocket connections; stopping
		// the hub ends each event stream with a going-away frame.
		_ = hub.Stop(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
