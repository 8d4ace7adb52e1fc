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
	"gigalert/internal/stats"
	"gigalert/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one cycle, log matches, exit",
	Long:  "One-shot dry run: fetches all sources, logs what would be delivered, exits. Nothing is sent or marked as sent.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: nothing will be sent or marked as sent")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The recipient directory is still real so keyword matching
	// reflects the live subscriber set.
	directory, closeDir, err := openDirectory(ctx, cfg)
	if err != nil {
		logger.Error("failed to open recipient directory", "error", err)
		os.Exit(1)
	}
	defer closeDir()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	adapters := buildAdapters(cfg, httpClient, logger)
	if len(adapters) == 0 {
		logger.Error("no sources enabled")
		os.Exit(1)
	}

	runner := cycle.NewRunner(
		adapters,
		directory,
		store.NewNopStore(),
		notifier.NewLogNotifier(logger),
		stats.NopSink{},
		runnerOptions(cfg),
		logger,
	)
	if err := runner.Run(ctx); err != nil {
		logger.Error("check cycle failed", "error", err)
		os.Exit(1)
	}

	logger.Info("check complete")
	return nil
}
