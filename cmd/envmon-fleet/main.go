// Package main implements the EnvMon fleet simulator: one supervisor per
// transport keeps a worker per active device, each generating readings on a
// random walk and sending them to the collector.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/c360/envmon/config"
	"github.com/c360/envmon/device"
	"github.com/c360/envmon/fleet"
	"github.com/c360/envmon/metric"
	"github.com/c360/envmon/natsclient"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "envmon-fleet"
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
		slog.Error("Fleet failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

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

	slog.Info("Starting EnvMon fleet",
		"version", Version, "build_time", BuildTime, "config_path", cliCfg.ConfigPath)

	ctx := context.Background()

	natsClient, err := natsclient.NewClient(cfg.Fleet.NATSURL,
		natsclient.WithName(appName),
		natsclient.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer natsClient.Close(ctx)

	registry := metric.NewMetricsRegistry()
	directory := fleet.NewRegistryClient(cfg.Fleet.RegistryURL, logger)

	senders := map[device.Protocol]fleet.Sender{
		device.ProtocolRPC:    fleet.NewRPCSender(natsClient),
		device.ProtocolBroker: fleet.NewBrokerSender(natsClient),
		device.ProtocolHTTP:   fleet.NewHTTPSender(cfg.Fleet.ServerURL, cfg.Fleet.MaxAttempts, logger),
	}

	supervisors := make([]*fleet.Supervisor, 0, len(senders))
	var g errgroup.Group
	for protocol, sender := range senders {
		protocol := protocol
		sup := fleet.NewSupervisor(fleet.SupervisorConfig{
			Protocol:     protocol,
			Registry:     directory,
			Sender:       sender,
			PollInterval: cfg.Fleet.PollInterval,
			SendInterval: cfg.Fleet.SendInterval,
			PoolWorkers:  cfg.Fleet.Workers,
		},
			fleet.WithLogger(logger),
			fleet.WithMetricsRegistry(registry))
		supervisors = append(supervisors, sup)
		g.Go(func() error {
			if err := sup.Start(ctx); err != nil {
				return fmt.Errorf("start %s supervisor: %w", protocol, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		shutdown(supervisors, senders, cliCfg.ShutdownTimeout)
		return err
	}

	slog.Info("Fleet started",
		"registry_url", cfg.Fleet.RegistryURL,
		"poll_interval", cfg.Fleet.PollInterval,
		"send_interval", cfg.Fleet.SendInterval)

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()
	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdown(supervisors, senders, cliCfg.ShutdownTimeout)

	slog.Info("Fleet shutdown complete")
	return nil
}

// shutdown stops supervisors in reverse start order, then closes senders.
func shutdown(supervisors []*fleet.Supervisor, senders map[device.Protocol]fleet.Sender, timeout time.Duration) {
	for i := len(supervisors) - 1; i >= 0; i-- {
		if err := supervisors[i].Stop(timeout); err != nil {
			slog.Error("Supervisor shutdown failed", "error", err)
		}
	}
	for _, sender := range senders {
		if err := sender.Close(); err != nil {
			slog.Warn("Sender close failed", "error", err)
		}
	}
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
