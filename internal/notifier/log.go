package notifier

import (
	"context"
	"log/slog"

	"gigalert/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes matched jobs to the given logger instead of a chat
// channel. Used by check mode.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each delivery via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Deliver logs the would-be alert. Returns nil (stdout logging does not fail).
func (n *LogNotifier) Deliver(_ context.Context, recipient model.Recipient, job model.Job, matchedKeyword string) error {
	args := []any{
		"recipient", recipient.ID,
		"source", job.Source,
		"title", job.Title,
		"url", job.Link(),
		"keyword", matchedKeyword,
	}
	if job.PostedAt != nil {
		args = append(args, "posted_at", *job.PostedAt)
	}
	n.logger.Info("matched job", args...)
	return nil
}
