package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mkarlovic/tradepost/tradepost/config"
	"github.com/mkarlovic/tradepost/tradepost/database/models"
	"github.com/uptrace/bun"
)

type OrderRepository interface {
	DB() *bun.DB
	// CreateWithEscrow inserts the order and its held escrow transaction in
	// one relational transaction. Checkout completion is the only path that
	// creates either entity.
	CreateWithEscrow(ctx context.Context, order *models.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	GetByBuyerID(ctx context.Context, buyerID string) ([]*models.Order, error)
	GetBySellerID(ctx context.Context, sellerID string) ([]*models.Order, error)
	// UpdateStatusIf applies the transition only while the current status is
	// one of from. Returns false with no error when another writer moved the
	// row first; the caller re-reads and classifies.
	UpdateStatusIf(ctx context.Context, orderID string, from []models.OrderStatus, to models.OrderStatus, deliveredAt *time.Time) (bool, error)
	OrderIDExists(ctx context.Context, orderID string) (bool, error)
}

type orderRepository struct {
	db *bun.DB
	// Delivered and cancelled orders never change again, so they are safe
	// to serve from cache indefinitely.
	terminal *lru.Cache
}

func NewOrderRepository(db *bun.DB) OrderRepository {
	cache, _ := lru.New(config.TerminalCacheSize)
	return &orderRepository{db: db, terminal: cache}
}

func (r *orderRepository) DB() *bun.DB {
	return r.db
}

func (r *orderRepository) CreateWithEscrow(ctx context.Context, order *models.Order) error {
	now := time.Now()
	order.Status = models.OrderProcessing
	order.CreatedAt = now
	order.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	escrow := &models.EscrowTransaction{
		OrderID:   order.OrderID,
		Status:    models.EscrowHeld,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := tx.NewInsert().Model(escrow).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create escrow transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order creation: %w", err)
	}

	slog.Info("Order created with held escrow",
		slog.String("type", "db"),
		slog.String("order_id", order.OrderID),
		slog.String("buyer_id", order.BuyerID),
		slog.String("seller_id", order.SellerID),
		slog.Int64("total_amount", order.TotalAmount))
	return nil
}

func (r *orderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	if cached, ok := r.terminal.Get(orderID); ok {
		return cached.(*models.Order), nil
	}

	order := new(models.Order)
	err := r.db.NewSelect().
		Model(order).
		Where("order_id = ?", orderID).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order.Status.Terminal() {
		r.terminal.Add(orderID, order)
	}
	return order, nil
}

func (r *orderRepository) GetByBuyerID(ctx context.Context, buyerID string) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.NewSelect().
		Model(&orders).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get buyer orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) GetBySellerID(ctx context.Context, sellerID string) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.NewSelect().
		Model(&orders).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get seller orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatusIf(ctx context.Context, orderID string, from []models.OrderStatus, to models.OrderStatus, deliveredAt *time.Time) (bool, error) {
	q := r.db.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("status IN (?)", bun.In(from))

	if deliveredAt != nil {
		q = q.Set("actual_delivery_date = ?", *deliveredAt)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *orderRepository) OrderIDExists(ctx context.Context, orderID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.Order)(nil)).
		Where("order_id = ?", orderID).
		Exists(ctx)

	return exists, err
}
