package commerce

import (
	"context"

	"github.com/mkarlovic/tradepost/tradepost/config"
	"github.com/mkarlovic/tradepost/tradepost/database/models"
	"github.com/mkarlovic/tradepost/tradepost/database/repositories"
	"github.com/mkarlovic/tradepost/tradepost/logger"
)

// Notifier creates pending-read notices. Like audit writes these are
// best-effort: the transition that triggered the notice has already
// committed and a missing notification is recoverable, not a correctness
// violation.
type Notifier struct {
	repo repositories.NotificationRepository
}

func NewNotifier(repo repositories.NotificationRepository) *Notifier {
	return &Notifier{repo: repo}
}

func (n *Notifier) Notify(ctx context.Context, notification *models.Notification) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.SideEffectTimeout)
	defer cancel()

	if err := n.repo.Insert(writeCtx, notification); err != nil {
		logger.LogError("Notification dropped", err,
			"notification_type", string(notification.Type),
			"user_id", notification.UserID)
	}
}
