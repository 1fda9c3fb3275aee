// Package main implements the EnvMon collector: it ingests sensor samples
// over HTTP, NATS request/reply, and JetStream, validates them against the
// device directory, persists them, and serves the query API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/c360/envmon/aggregate"
	"github.com/c360/envmon/config"
	"github.com/c360/envmon/devicecache"
	"github.com/c360/envmon/gateway"
	"github.com/c360/envmon/ingest"
	"github.com/c360/envmon/metric"
	"github.com/c360/envmon/natsclient"
	"github.com/c360/envmon/storage"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "envmon-collector"
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
		slog.Error("Collector failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Local .env files override nothing already in the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.LogLevel != "" {
		cfg.LogLevel = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.LogFormat = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting EnvMon collector",
		"version", Version, "build_time", BuildTime, "config_path", cliCfg.ConfigPath)

	ctx := context.Background()

	store, err := storage.Open(ctx, cfg.Collector.Database.Driver, cfg.Collector.Database.DSN,
		storage.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	registry := metric.NewMetricsRegistry()

	cache := devicecache.New(store, cfg.Collector.CacheRefreshInterval,
		devicecache.WithLogger(logger),
		devicecache.WithMetricsRegistry(registry))
	if err := cache.Start(ctx); err != nil {
		return fmt.Errorf("start device cache: %w", err)
	}
	defer cache.Stop()

	hub := gateway.NewHub(logger)
	defer hub.Close()

	// The gate validates against the store by default; the cached lookup
	// trades staleness (one refresh interval) for per-sample query load.
	var lookup ingest.DeviceLookup = store
	if cfg.Collector.UseCachedLookup {
		lookup = cache
	}
	gate := ingest.NewGate(lookup, store,
		ingest.WithLogger(logger),
		ingest.WithMetricsRegistry(registry),
		ingest.WithBroadcast(hub.Broadcast))

	natsClient, err := natsclient.NewClient(cfg.Collector.NATSURL,
		natsclient.WithName(appName),
		natsclient.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer natsClient.Close(ctx)

	rpcServer := ingest.NewRPCServer(natsClient, gate, logger)
	if err := rpcServer.Start(ctx); err != nil {
		return fmt.Errorf("start RPC endpoint: %w", err)
	}

	brokerConsumer := ingest.NewBrokerConsumer(natsClient, gate, logger)
	if err := brokerConsumer.Start(ctx); err != nil {
		return fmt.Errorf("start broker consumer: %w", err)
	}

	engine := aggregate.NewEngine(store)
	server := gateway.NewServer(cfg.Collector.HTTPAddr, store, gate, engine,
		gateway.WithLogger(logger),
		gateway.WithMetricsRegistry(registry),
		gateway.WithHub(hub))
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}

	slog.Info("Collector started", "http_addr", cfg.Collector.HTTPAddr,
		"nats_url", cfg.Collector.NATSURL, "driver", cfg.Collector.Database.Driver)

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()
	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := server.Stop(cliCfg.ShutdownTimeout); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}

	slog.Info("Collector shutdown complete")
	return nil
}

func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}
	return cliCfg, false, nil
}
