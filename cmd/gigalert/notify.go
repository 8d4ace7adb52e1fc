package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gigalert/internal/notifier"
)

var notifyChatID int64

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test alert",
	Long:  "Sends a dummy alert to the given chat through the configured bot token.",
	RunE:  runNotifyTest,
}

func init() {
	notifyTestCmd.Flags().Int64Var(&notifyChatID, "chat", 0, "chat ID to send the test alert to (required)")
	_ = notifyTestCmd.MarkFlagRequired("chat")

	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	tg := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.MinSendDelay, httpClient, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := notifier.SendTestMessage(ctx, tg, notifyChatID); err != nil {
		logger.Error("test alert failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test alert sent successfully", "chat", notifyChatID)
	return nil
}
