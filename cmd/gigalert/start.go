package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gigalert/internal/cycle"
	"gigalert/internal/notifier"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the alert daemon",
	Long:  "Start the cycle scheduler; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.PollingInterval.String(),
		"schedule", cfg.Schedule,
		"store", cfg.Store.Driver,
		"max_age", cfg.Filters.MaxAge.String(),
		"send_cap", cfg.Filters.SendCap,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sentStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open sent store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	directory, closeDir, err := openDirectory(ctx, cfg)
	if err != nil {
		logger.Error("failed to open recipient directory", "error", err)
		os.Exit(1)
	}
	defer closeDir()

	sink, closeSink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up stats sink", "error", err)
		os.Exit(1)
	}
	defer closeSink()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	adapters := buildAdapters(cfg, httpClient, logger)
	if len(adapters) == 0 {
		logger.Error("no sources enabled")
		os.Exit(1)
	}

	tg := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.MinSendDelay, httpClient, logger)

	runner := cycle.NewRunner(adapters, directory, sentStore, tg, sink, runnerOptions(cfg), logger)
	sched := cycle.NewScheduler(runner, cfg.PollingInterval, cfg.Schedule, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
