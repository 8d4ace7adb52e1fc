package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gigalert/internal/history"
)

var (
	historyLimit int
	historyPlain bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the sent log (TUI)",
	Long:  "Shows the most recent delivered alerts in an interactive browser.",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum entries to load")
	historyCmd.Flags().BoolVar(&historyPlain, "plain", false, "print entries instead of launching the TUI")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	sentStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open sent store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	if historyPlain {
		records, err := sentStore.RecentSent(ctx, historyLimit)
		if err != nil {
			logger.Error("failed to load sent log", "error", err)
			os.Exit(1)
		}
		fmt.Print(history.Summary(records))
		return nil
	}

	if err := history.Run(ctx, sentStore, historyLimit); err != nil {
		logger.Error("history browser failed", "error", err)
		os.Exit(1)
	}
	return nil
}
