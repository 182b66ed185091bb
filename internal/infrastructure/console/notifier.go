package console

import (
	"context"
	"log/slog"

	"FriendReminder/internal/ports"
)

// Notifier logs reminders instead of delivering them. Used for dry runs and local setups.
type Notifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, message string) error {
	n.logger.InfoContext(ctx, "reminder", "message", message)
	return nil
}
