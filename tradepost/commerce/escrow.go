package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/mkarlovic/tradepost/tradepost/config"
	"github.com/mkarlovic/tradepost/tradepost/database/models"
	"github.com/mkarlovic/tradepost/tradepost/database/repositories"
	"github.com/mkarlovic/tradepost/tradepost/logger"
)

// EscrowLedger owns the fund-holding state tied 1:1 to an order. It records
// the authorization decision a downstream payout collaborator acts on; it
// never moves money itself.
type EscrowLedger struct {
	repo     repositories.EscrowRepository
	orders   repositories.OrderRepository
	guard    *Guard
	notifier *Notifier
	audit    *AuditWriter
}

func NewEscrowLedger(repo repositories.EscrowRepository, orders repositories.OrderRepository, guard *Guard, notifier *Notifier, audit *AuditWriter) *EscrowLedger {
	return &EscrowLedger{
		repo:     repo,
		orders:   orders,
		guard:    guard,
		notifier: notifier,
		audit:    audit,
	}
}

// Release is the standalone entry point. Only the buyer of a delivered
// order may trigger it; the delivery-confirmation path calls
// ReleaseForOrder directly after it commits the delivered status.
func (l *EscrowLedger) Release(ctx context.Context, orderID, actorID string) (*models.EscrowTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, config.TransitionTimeout)
	defer cancel()

	order, err := l.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, classifyStorage(err)
	}
	if err := l.guard.AuthorizeOrder(actorID, order, ActionReleaseEscrow); err != nil {
		return nil, err
	}
	if order.Status != models.OrderDelivered {
		return nil, fmt.Errorf("escrow release requires a delivered order, order %s is %s: %w",
			orderID, order.Status, ErrInvalidTransition)
	}

	if err := l.ReleaseForOrder(ctx, order, actorID); err != nil {
		return nil, err
	}

	escrow, err := l.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, classifyStorage(err)
	}
	return escrow, nil
}

// ReleaseForOrder moves the escrow from held to released. Idempotent: an
// already-released escrow returns success without repeating side effects.
// On storage failure nothing is emitted; the caller retries the whole call.
func (l *EscrowLedger) ReleaseForOrder(ctx context.Context, order *models.Order, actorID string) error {
	start := time.Now()
	applied, err := l.repo.UpdateStatusIf(ctx, order.OrderID, models.EscrowHeld, models.EscrowReleased)
	logger.LogTransition("escrow", order.OrderID, string(models.EscrowHeld), string(models.EscrowReleased), time.Since(start), err)
	if err != nil {
		return classifyStorage(err)
	}

	if !applied {
		escrow, err := l.repo.GetByOrderID(ctx, order.OrderID)
		if err != nil {
			return classifyStorage(err)
		}
		if escrow.Status == models.EscrowReleased {
			// Another writer already released; the payout trigger and
			// notification were emitted exactly once by that writer.
			return nil
		}
		return fmt.Errorf("escrow for order %s is %s: %w", order.OrderID, escrow.Status, ErrInvalidTransition)
	}

	if notification, err := models.NewPaymentNotification(order.SellerID, order.OrderID, order.TotalAmount); err == nil {
		l.notifier.Notify(ctx, notification)
	} else {
		logger.LogError("Failed to build payment notification", err, "order_id", order.OrderID)
	}

	if event, err := models.NewAuditEvent(models.AuditEscrowReleased, models.AuditSuccess, actorID, order.OrderID,
		"escrow released to seller", order.TotalAmount); err == nil {
		l.audit.Record(ctx, event)
	} else {
		logger.LogError("Failed to build audit event", err, "order_id", order.OrderID)
	}

	return nil
}

// RefundForOrder moves the escrow from held to refunded, symmetric to
// ReleaseForOrder.
func (l *EscrowLedger) RefundForOrder(ctx context.Context, order *models.Order, actorID string) error {
	start := time.Now()
	applied, err := l.repo.UpdateStatusIf(ctx, order.OrderID, models.EscrowHeld, models.EscrowRefunded)
	logger.LogTransition("escrow", order.OrderID, string(models.EscrowHeld), string(models.EscrowRefunded), time.Since(start), err)
	if err != nil {
		return classifyStorage(err)
	}

	if !applied {
		escrow, err := l.repo.GetByOrderID(ctx, order.OrderID)
		if err != nil {
			return classifyStorage(err)
		}
		if escrow.Status == models.EscrowRefunded {
			return nil
		}
		return fmt.Errorf("escrow for order %s is %s: %w", order.OrderID, escrow.Status, ErrInvalidTransition)
	}

	if notification, err := models.NewOrderNotification(order.BuyerID, order.OrderID,
		"Order refunded", fmt.Sprintf("Order %s was cancelled and your payment is being refunded.", order.OrderID)); err == nil {
		l.notifier.Notify(ctx, notification)
	} else {
		logger.LogError("Failed to build refund notification", err, "order_id", order.OrderID)
	}

	if event, err := models.NewAuditEvent(models.AuditEscrowRefunded, models.AuditSuccess, actorID, order.OrderID,
		"escrow refunded to buyer", order.TotalAmount); err == nil {
		l.audit.Record(ctx, event)
	} else {
		logger.LogError("Failed to build audit event", err, "order_id", order.OrderID)
	}

	return nil
}
