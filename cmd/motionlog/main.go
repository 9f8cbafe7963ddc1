// Package main implements the entry point for the motionlog application.
// Motionlog records multi-sensor motion capture streams over UDP and
// time-aligns the recorded tables onto a common clock.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/c360/motionlog/capture"
	"github.com/c360/motionlog/config"
	"github.com/c360/motionlog/device"
	"github.com/c360/motionlog/metric"
	"github.com/c360/motionlog/resample"
	"github.com/c360/motionlog/table"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "motionlog"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	switch flag0() {
	case "", "record":
		return runRecord(cliCfg, cfg, logger)
	case "aggregate":
		return runAggregate(cfg)
	default:
		return fmt.Errorf("unknown command %q, expected record or aggregate", flag0())
	}
}

// initializeCLI parses flags and handles version/help
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

// initializeConfiguration loads configuration and applies flag overrides
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cliCfg.ConfigPath != "" {
		loaded, err := config.Load(cliCfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
	}

	applyFlagOverrides(&cfg, cliCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyFlagOverrides lets command-line flags win over file values
func applyFlagOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.Listen != "" {
		cfg.Listen = cliCfg.Listen
	}
	if cliCfg.OutputPath != "" {
		cfg.Output.LivePath = cliCfg.OutputPath
	}
	if cliCfg.AggregatedPath != "" {
		cfg.Output.AggregatedPath = cliCfg.AggregatedPath
	}
	if cliCfg.MetricsPort == 0 {
		cfg.Metrics.Enabled = false
	} else if cliCfg.MetricsPort > 0 {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Port = cliCfg.MetricsPort
	}
	if cliCfg.ShutdownTimeout > 0 {
		cfg.ShutdownTimeoutMs = int(cliCfg.ShutdownTimeout.Milliseconds())
	}
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
}

// resolveRegistry builds the device registry from the first available
// source: the -devices flag, the config file, or an interactive prompt.
func resolveRegistry(cliCfg *CLIConfig, cfg *config.Config) (*device.Registry, error) {
	if cliCfg.Devices != "" {
		return device.ParseDeclaration(cliCfg.Devices)
	}

	if len(cfg.Devices) > 0 {
		return device.New(cfg.Devices)
	}

	fmt.Println("Enter the devices in the following format: <device #>:<device name>,")
	fmt.Print(":")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read device declaration: %w", err)
		}
		return nil, fmt.Errorf("no device declaration entered")
	}

	return device.ParseDeclaration(scanner.Text())
}

// runRecord listens for sensor datagrams until interrupted or a fatal
// ingest error, then writes the live table exactly once.
func runRecord(cliCfg *CLIConfig, cfg *config.Config, logger *slog.Logger) error {
	registry, err := resolveRegistry(cliCfg, cfg)
	if err != nil {
		return fmt.Errorf("resolve devices: %w", err)
	}

	for _, entry := range registry.Entries() {
		slog.Info("Device registered", "id", entry.ID, "name", entry.Name)
	}

	var metricsRegistry *metric.MetricsRegistry
	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsRegistry = metric.NewMetricsRegistry()
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
	}

	store := capture.NewStore(registry)
	recorder := capture.NewRecorder(capture.RecorderDeps{
		Name: appName,
		Config: capture.RecorderConfig{
			Listen:      cfg.Listen,
			ReadTimeout: cfg.ReadTimeout(),
		},
		Store:           store,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	})

	if err := recorder.Initialize(); err != nil {
		return fmt.Errorf("initialize recorder: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := recorder.Start(signalCtx); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}

	slog.Info("Recording started",
		"listen", recorder.LocalAddr().String(),
		"output", cfg.Output.LivePath)

	g, gctx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		return recorder.Wait(gctx)
	})

	if metricsServer != nil {
		g.Go(func() error {
			slog.Info("Metrics server starting", "address", metricsServer.Address())
			return metricsServer.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			return metricsServer.Stop()
		})
	}

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		slog.Info("Received shutdown signal")
		runErr = nil
	}

	if err := recorder.Stop(cfg.ShutdownTimeout()); err != nil {
		slog.Warn("Recorder stop", "error", err)
	}

	// The table is saved exactly once, whether shutdown was clean or not.
	snapshot := store.Snapshot()
	if err := table.WriteFile(cfg.Output.LivePath, snapshot); err != nil {
		if runErr != nil {
			slog.Error("Saving live table failed", "error", err)
			return runErr
		}
		return fmt.Errorf("save live table: %w", err)
	}

	slog.Info("Live table saved",
		"path", cfg.Output.LivePath,
		"rows", snapshot.Rows(),
		"readings", store.TotalReadings())

	return runErr
}

// runAggregate time-aligns a recorded table onto the reference clock.
func runAggregate(cfg *config.Config) error {
	input := cfg.Output.LivePath
	if arg := flagArg(1); arg != "" {
		input = arg
	}

	live, err := table.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read live table: %w", err)
	}

	aggregated, err := resample.Aggregate(live)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	if err := table.WriteFile(cfg.Output.AggregatedPath, aggregated); err != nil {
		return fmt.Errorf("save aggregated table: %w", err)
	}

	slog.Info("Aggregated table saved",
		"input", input,
		"path", cfg.Output.AggregatedPath,
		"rows", aggregated.Rows())

	return nil
}
