// Package main implements the entry point for the refbridge service.
// Refbridge keeps entities in a relational store and documents in a
// JetStream-backed document repository consistent through a cross-store
// unit of work.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/refbridge/adapter"
	"github.com/c360/refbridge/config"
	"github.com/c360/refbridge/metadata"
	"github.com/c360/refbridge/store"
	"github.com/c360/refbridge/store/docstore"
	"github.com/c360/refbridge/store/relstore"
	"github.com/c360/refbridge/unitofwork"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "refbridge"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	bridge, err := setupBridge(signalCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer bridge.close()

	if cfg.Metrics.Enabled {
		startMetricsServer(signalCtx, cfg.Metrics.Addr, bridge.registerer)
	}

	slog.Info("Refbridge started", "version", Version, "db", cfg.Relational.Path, "nats", cfg.Documents.URL)

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := bridge.uow.Clear(shutdownCtx); err != nil {
		slog.Error("Error clearing bridge state", "error", err)
	}

	slog.Info("Refbridge shutdown complete")
	return nil
}

// bridge bundles the wired stores, unit of work, and adapter.
type bridge struct {
	entities   *relstore.Store
	documents  *docstore.Store
	uow        *unitofwork.UnitOfWork
	adapter    *adapter.Adapter
	registry   *metadata.Registry
	registerer *prometheus.Registry
	nc         *nats.Conn
}

func (b *bridge) close() {
	if b.nc != nil {
		b.nc.Close()
	}
	if b.entities != nil {
		_ = b.entities.Close()
	}
}

// setupBridge connects both stores and wires the unit of work between them.
func setupBridge(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*bridge, error) {
	entities, err := relstore.New(cfg.Relational.Path, relstore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open entity store: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.Documents.URL)
	nc, err := nats.Connect(cfg.Documents.URL,
		nats.Timeout(cfg.Documents.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		_ = entities.Close()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		_ = entities.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	documents, err := docstore.New(ctx, js, docstore.Config{
		DocsBucket: cfg.Documents.DocsBucket,
		UIDBucket:  cfg.Documents.UIDBucket,
	}, docstore.WithLogger(logger))
	if err != nil {
		nc.Close()
		_ = entities.Close()
		return nil, fmt.Errorf("open document store: %w", err)
	}

	registry := metadata.NewRegistry()
	registerer := prometheus.NewRegistry()

	uow, err := unitofwork.New(registry, store.NewStaticResolver(documents),
		unitofwork.WithLogger(logger),
		unitofwork.WithMetrics(registerer),
	)
	if err != nil {
		nc.Close()
		_ = entities.Close()
		return nil, fmt.Errorf("create unit of work: %w", err)
	}

	bridgeAdapter, err := adapter.New(uow, registry, adapter.WithLogger(logger))
	if err != nil {
		nc.Close()
		_ = entities.Close()
		return nil, fmt.Errorf("create adapter: %w", err)
	}
	bridgeAdapter.Attach(entities.Notifier())

	return &bridge{
		entities:   entities,
		documents:  documents,
		uow:        uow,
		adapter:    bridgeAdapter,
		registry:   registry,
		registerer: registerer,
		nc:         nc,
	}, nil
}

// startMetricsServer serves the Prometheus endpoint until ctx is cancelled.
func startMetricsServer(ctx context.Context, addr string, registerer *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Metrics endpoint listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
