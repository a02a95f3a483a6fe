// Package main is the entry point for the Vitalis probe.
// It loads layered configuration, wires the reporting pipeline and runs
// as either a Windows service or a foreground process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vitalis-app/probe/internal/cache"
	"github.com/vitalis-app/probe/internal/collector"
	"github.com/vitalis-app/probe/internal/config"
	"github.com/vitalis-app/probe/internal/identity"
	"github.com/vitalis-app/probe/internal/payload"
	"github.com/vitalis-app/probe/internal/scheduler"
	"github.com/vitalis-app/probe/internal/sender"
	"github.com/vitalis-app/probe/internal/service"
	"github.com/vitalis-app/probe/internal/telemetry"
)

// shutdownTimeout bounds the telemetry flush on exit.
const shutdownTimeout = 5 * time.Second

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath  = flag.String("config", "", "Path to configuration file (default: search standard locations)")
	serverURL   = flag.String("server", "", "Collector base URL (overrides config)")
	clientName  = flag.String("name", "", "Client display name (overrides config)")
	writeConfig = flag.String("write-config", "", "Write the effective configuration to this path and exit")
	showVersion = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vitalis-probe %s\n", version)
		os.Exit(0)
	}

	cli := config.CLIOverrides{URL: *serverURL, Name: *clientName}
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadLayered(cli, embeddedConfig, *configPath)
	} else {
		cfg, err = config.LoadLayered(cli, embeddedConfig)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := config.WriteConfig(cfg, *writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		os.Exit(0)
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting Vitalis Probe",
		zap.String("version", version),
		zap.String("server", cfg.Server.URL),
		zap.String("client", cfg.Client.Name))

	if service.IsWindowsService() {
		logger.Info("Running as Windows service")
		svc := service.New(logger, func(ctx context.Context) {
			if err := runProbe(ctx, cfg, logger); err != nil {
				logger.Error("Probe failed", zap.Error(err))
			}
		})
		if err := svc.Run(); err != nil {
			logger.Fatal("Service failed", zap.Error(err))
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runProbe(ctx, cfg, logger); err != nil {
		logger.Error("Probe failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Probe stopped")
}

// runProbe wires the reporting pipeline and blocks until ctx is cancelled.
func runProbe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics, err := telemetry.New(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Failed to flush telemetry", zap.Error(err))
		}
	}()

	clientID := identity.GetOrCreate(cfg.Report.CacheDir, logger.Named("identity"))

	backlog := cache.New(cfg.Report.CacheDir, cfg.Report.CacheSize, cfg.Report.MaxRetries,
		logger.Named("cache"), cache.WithDropRecorder(metrics))
	if err := metrics.ObserveBacklog(backlog.Len); err != nil {
		logger.Warn("Backlog gauge unavailable", zap.Error(err))
	}

	client := sender.New(cfg.Server.URL, backlog, logger.Named("sender"), sender.WithRecorder(metrics))

	source := collector.NewSystem(cfg.Client.Location, logger.Named("collector"))
	assembler := payload.NewAssembler(clientID, cfg.Client, source.Platform(), cfg.Client.Hostname)

	reporter := scheduler.New(source, assembler, client, backlog, cfg.Report.Interval.Duration, logger.Named("reporter"))
	if err := reporter.Start(ctx); err != nil {
		return fmt.Errorf("start reporter: %w", err)
	}

	logger.Info("Probe running",
		zap.String("client_id", clientID),
		zap.String("platform", source.Platform().String()),
		zap.Duration("interval", cfg.Report.Interval.Duration),
		zap.Int("backlog", backlog.Len()))

	<-ctx.Done()
	logger.Info("Shutting down")
	reporter.Stop()
	return nil
}

// initLogger creates a zap logger based on the configuration.
// It outputs to both console (human-readable) and optionally a JSON log file.
func initLogger(cfg *config.Config) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			))
		} else {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", cfg.Logging.File, err)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
