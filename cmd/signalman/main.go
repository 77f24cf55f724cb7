package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/app"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/models"
	"github.com/ternarybob/signalman/internal/services/scheduler"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	runOnce      = flag.Bool("once", false, "Run a single processing cycle and exit")
	queueCmd     = flag.String("queue", "", "Queue maintenance: stats, process, or cleanup")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Signalman version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence:
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Initialize logger
	// 3. Print banner
	// 4. Wire services and run

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("signalman.toml"); err == nil {
			configFiles = append(configFiles, "signalman.toml")
		} else if _, err := os.Stat("deployments/local/signalman.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/signalman.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.InstallCrashHandler("./logs")
	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("alert_strategy", config.Alerts.Strategy).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	if *queueCmd != "" {
		if err := runQueueCommand(application, *queueCmd); err != nil {
			logger.Fatal().Err(err).Str("command", *queueCmd).Msg("Queue command failed")
			os.Exit(1)
		}
		return
	}

	if *runOnce || !config.Scheduler.Enabled {
		if err := application.RunCycle(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("Processing cycle failed")
			os.Exit(1)
		}
		return
	}

	svc := scheduler.NewService(&config.Scheduler, application.RunCycle, logger)
	if err := svc.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
		os.Exit(1)
	}

	// First cycle runs immediately; the schedule covers the rest.
	common.SafeGo(logger, "initial-cycle", func() {
		if err := svc.RunNow(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Initial cycle failed")
		}
	})

	logger.Info().
		Str("schedule", config.Scheduler.Schedule).
		Msg("Signalman running - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")
	svc.Stop()
	logger.Info().Msg("Signalman stopped")
}

// runQueueCommand handles the -queue maintenance modes.
func runQueueCommand(application *app.App, command string) error {
	ctx := context.Background()

	switch command {
	case "stats":
		for _, status := range []models.AlertStatus{
			models.AlertStatusPending,
			models.AlertStatusSent,
			models.AlertStatusFailed,
			models.AlertStatusDiscarded,
		} {
			alerts, err := application.AlertStorage.ListByStatus(ctx, status)
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %d\n", status, len(alerts))
		}
		return nil

	case "process":
		delivery, err := application.AlertBatcher.ProcessPending(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("sent=%d skipped=%d failed=%d discarded=%d batches=%d\n",
			delivery.Sent, delivery.Skipped, delivery.Failed, delivery.Discarded, delivery.Batches)
		return nil

	case "cleanup":
		removed, err := application.AlertBatcher.Cleanup(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d retired records\n", removed)
		return nil

	default:
		return fmt.Errorf("unknown queue command %q (expected stats, process, or cleanup)", command)
	}
}
