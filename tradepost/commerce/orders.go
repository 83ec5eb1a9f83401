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

// OrderEngine owns the order state machine:
//
//	processing -> shipped -> out_for_delivery -> delivered
//	processing -> cancelled
//
// delivered and cancelled are terminal. Every transition is a conditional
// write on the current status, so concurrent requests for the same order
// serialize at the storage layer.
type OrderEngine struct {
	orders   repositories.OrderRepository
	escrow   *EscrowLedger
	guard    *Guard
	notifier *Notifier
	audit    *AuditWriter
	ids      *IDGenerator
}

func NewOrderEngine(orders repositories.OrderRepository, escrow *EscrowLedger, guard *Guard, notifier *Notifier, audit *AuditWriter) *OrderEngine {
	engine := &OrderEngine{
		orders:   orders,
		escrow:   escrow,
		guard:    guard,
		notifier: notifier,
		audit:    audit,
	}
	engine.ids = NewIDGenerator("ORD", orders.OrderIDExists)
	return engine
}

// CreateOrder is the checkout-completion path: payment capture has already
// happened upstream, so the order and its held escrow are created together.
func (e *OrderEngine) CreateOrder(ctx context.Context, buyerID, sellerID string, totalAmount int64) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, config.TransitionTimeout)
	defer cancel()

	if buyerID == "" || sellerID == "" {
		return nil, fmt.Errorf("order requires buyer and seller: %w", ErrInvalidTransition)
	}
	if buyerID == sellerID {
		return nil, fmt.Errorf("buyer and seller must differ: %w", ErrInvalidTransition)
	}
	if totalAmount <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %d: %w", totalAmount, ErrInvalidTransition)
	}

	orderID, err := e.ids.Generate(ctx)
	if err != nil {
		return nil, classifyStorage(err)
	}

	order := &models.Order{
		OrderID:     orderID,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		TotalAmount: totalAmount,
	}
	if err := e.orders.CreateWithEscrow(ctx, order); err != nil {
		return nil, classifyStorage(err)
	}

	if event, err := models.NewAuditEvent(models.AuditOrderCreated, models.AuditSuccess, buyerID, orderID,
		"order created, escrow held", totalAmount); err == nil {
		e.audit.Record(ctx, event)
	}

	if notification, err := models.NewOrderNotification(sellerID, orderID,
		"New order", fmt.Sprintf("You received order %s.", orderID)); err == nil {
		e.notifier.Notify(ctx, notification)
	}

	return order, nil
}

// Get returns the order to a participant or an admin. Anyone else gets
// the same outcome as a missing order.
func (e *OrderEngine) Get(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	order, err := e.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, classifyStorage(err)
	}
	if actorID != order.BuyerID && actorID != order.SellerID && !e.guard.IsAdmin(actorID) {
		return nil, fmt.Errorf("actor %s may not view order %s: %w", actorID, orderID, ErrNotAuthorized)
	}
	return order, nil
}

// ListForUser returns the actor's purchases and sales.
func (e *OrderEngine) ListForUser(ctx context.Context, userID string) (purchases, sales []*models.Order, err error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	purchases, err = e.orders.GetByBuyerID(ctx, userID)
	if err != nil {
		return nil, nil, classifyStorage(err)
	}
	sales, err = e.orders.GetBySellerID(ctx, userID)
	if err != nil {
		return nil, nil, classifyStorage(err)
	}
	return purchases, sales, nil
}

// ConfirmReceipt is the buyer's declaration that the order arrived. It is
// idempotent: a repeated or concurrent confirmation reports success without
// repeating side effects, and a retry after a crash between the order
// commit and the escrow step completes the escrow step safely.
func (e *OrderEngine) ConfirmReceipt(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, config.TransitionTimeout)
	defer cancel()

	order, err := e.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, classifyStorage(err)
	}
	if err := e.guard.AuthorizeOrder(actorID, order, ActionConfirmDelivery); err != nil {
		return nil, err
	}

	if order.Status == models.OrderDelivered {
		// Already confirmed. Still drive the escrow step so a retry after
		// a partial failure converges; the ledger no-ops when released.
		if err := e.escrow.ReleaseForOrder(ctx, order, actorID); err != nil {
			return nil, err
		}
		return order, nil
	}
	if order.Status == models.OrderCancelled {
		return nil, fmt.Errorf("order %s is cancelled: %w", orderID, ErrInvalidTransition)
	}

	now := time.Now()
	start := time.Now()
	// Fulfillment statuses are advisory; the buyer's confirmation is valid
	// from any non-terminal state.
	applied, err := e.orders.UpdateStatusIf(ctx, orderID,
		[]models.OrderStatus{models.OrderProcessing, models.OrderShipped, models.OrderOutForDelivery},
		models.OrderDelivered, &now)
	logger.LogTransition("order", orderID, string(order.Status), string(models.OrderDelivered), time.Since(start), err)
	if err != nil {
		return nil, classifyStorage(err)
	}

	if !applied {
		// Lost the conditional write; classify against the winner's state.
		current, err := e.orders.GetByOrderID(ctx, orderID)
		if err != nil {
			return nil, classifyStorage(err)
		}
		if current.Status == models.OrderDelivered {
			if err := e.escrow.ReleaseForOrder(ctx, current, actorID); err != nil {
				return nil, err
			}
			return current, nil
		}
		return nil, fmt.Errorf("order %s is %s, cannot confirm receipt: %w", orderID, current.Status, ErrInvalidTransition)
	}

	order.Status = models.OrderDelivered
	order.ActualDeliveryDate = &now

	if err := e.escrow.ReleaseForOrder(ctx, order, actorID); err != nil {
		return nil, err
	}

	if event, err := models.NewAuditEvent(models.AuditOrderDeliveryConfirmed, models.AuditSuccess, actorID, orderID,
		"buyer confirmed delivery", order.TotalAmount); err == nil {
		e.audit.Record(ctx, event)
	}

	return order, nil
}

// Cancel aborts a processing order and refunds its escrow. Permitted to
// either participant or an admin, and only before fulfillment starts.
func (e *OrderEngine) Cancel(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, config.TransitionTimeout)
	defer cancel()

	order, err := e.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, classifyStorage(err)
	}
	if err := e.guard.AuthorizeOrder(actorID, order, ActionCancelOrder); err != nil {
		return nil, err
	}

	if order.Status == models.OrderCancelled {
		if err := e.escrow.RefundForOrder(ctx, order, actorID); err != nil {
			return nil, err
		}
		return order, nil
	}
	if order.Status != models.OrderProcessing {
		return nil, fmt.Errorf("order %s is %s, only processing orders can be cancelled: %w",
			orderID, order.Status, ErrInvalidTransition)
	}

	start := time.Now()
	applied, err := e.orders.UpdateStatusIf(ctx, orderID,
		[]models.OrderStatus{models.OrderProcessing}, models.OrderCancelled, nil)
	logger.LogTransition("order", orderID, string(models.OrderProcessing), string(models.OrderCancelled), time.Since(start), err)
	if err != nil {
		return nil, classifyStorage(err)
	}

	if !applied {
		current, err := e.orders.GetByOrderID(ctx, orderID)
		if err != nil {
			return nil, classifyStorage(err)
		}
		if current.Status == models.OrderCancelled {
			if err := e.escrow.RefundForOrder(ctx, current, actorID); err != nil {
				return nil, err
			}
			return current, nil
		}
		return nil, fmt.Errorf("order %s is %s, cannot cancel: %w", orderID, current.Status, ErrInvalidTransition)
	}

	order.Status = models.OrderCancelled

	if err := e.escrow.RefundForOrder(ctx, order, actorID); err != nil {
		return nil, err
	}

	if event, err := models.NewAuditEvent(models.AuditOrderCancelled, models.AuditSuccess, actorID, orderID,
		"order cancelled", order.TotalAmount); err == nil {
		e.audit.Record(ctx, event)
	}

	return order, nil
}

// MarkShipped records the seller handing the order to the carrier.
func (e *OrderEngine) MarkShipped(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	return e.fulfillmentTransition(ctx, orderID, actorID, ActionShipOrder,
		models.OrderProcessing, models.OrderShipped,
		"Order shipped", "Order %s has shipped.")
}

// MarkOutForDelivery records the carrier's final leg.
func (e *OrderEngine) MarkOutForDelivery(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	return e.fulfillmentTransition(ctx, orderID, actorID, ActionMarkOutForDel,
		models.OrderShipped, models.OrderOutForDelivery,
		"Order out for delivery", "Order %s is out for delivery.")
}

func (e *OrderEngine) fulfillmentTransition(ctx context.Context, orderID, actorID string, action Action, from, to models.OrderStatus, title, messageFmt string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, config.TransitionTimeout)
	defer cancel()

	order, err := e.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, classifyStorage(err)
	}
	if err := e.guard.AuthorizeOrder(actorID, order, action); err != nil {
		return nil, err
	}

	if order.Status == to {
		return order, nil
	}

	start := time.Now()
	applied, err := e.orders.UpdateStatusIf(ctx, orderID, []models.OrderStatus{from}, to, nil)
	logger.LogTransition("order", orderID, string(from), string(to), time.Since(start), err)
	if err != nil {
		return nil, classifyStorage(err)
	}
	if !applied {
		current, err := e.orders.GetByOrderID(ctx, orderID)
		if err != nil {
			return nil, classifyStorage(err)
		}
		if current.Status == to {
			return current, nil
		}
		return nil, fmt.Errorf("order %s is %s, cannot move to %s: %w", orderID, current.Status, to, ErrInvalidTransition)
	}

	order.Status = to

	if notification, err := models.NewOrderNotification(order.BuyerID, orderID, title, fmt.Sprintf(messageFmt, orderID)); err == nil {
		e.notifier.Notify(ctx, notification)
	}

	return order, nil
}
