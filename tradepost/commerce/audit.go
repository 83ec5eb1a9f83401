package commerce

import (
	"context"

	"github.com/mkarlovic/tradepost/tradepost/config"
	"github.com/mkarlovic/tradepost/tradepost/database/models"
	"github.com/mkarlovic/tradepost/tradepost/database/repositories"
	"github.com/mkarlovic/tradepost/tradepost/logger"
)

// AuditWriter appends immutable audit events. Writes are best-effort: a
// failed append is logged for operational follow-up and never fails or
// rolls back the transition that produced it.
type AuditWriter struct {
	repo repositories.AuditRepository
}

func NewAuditWriter(repo repositories.AuditRepository) *AuditWriter {
	return &AuditWriter{repo: repo}
}

// Record appends the event. Detached from the caller's cancellation so an
// abandoned request still leaves its trail.
func (w *AuditWriter) Record(ctx context.Context, event *models.AuditEvent) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.SideEffectTimeout)
	defer cancel()

	if err := w.repo.Insert(writeCtx, event); err != nil {
		logger.LogError("Audit event dropped", err,
			"event_type", string(event.Type),
			"profile_id", event.ProfileID,
			"order_id", event.OrderID)
	}
}
