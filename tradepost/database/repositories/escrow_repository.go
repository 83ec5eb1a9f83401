package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkarlovic/tradepost/tradepost/database/models"
	"github.com/uptrace/bun"
)

type EscrowRepository interface {
	DB() *bun.DB
	GetByOrderID(ctx context.Context, orderID string) (*models.EscrowTransaction, error)
	// UpdateStatusIf moves the escrow out of held only while it is still
	// held. Returns false when the row was already released or refunded.
	UpdateStatusIf(ctx context.Context, orderID string, from models.EscrowStatus, to models.EscrowStatus) (bool, error)
}

type escrowRepository struct {
	db *bun.DB
}

func NewEscrowRepository(db *bun.DB) EscrowRepository {
	return &escrowRepository{db: db}
}

func (r *escrowRepository) DB() *bun.DB {
	return r.db
}

func (r *escrowRepository) GetByOrderID(ctx context.Context, orderID string) (*models.EscrowTransaction, error) {
	escrow := new(models.EscrowTransaction)
	err := r.db.NewSelect().
		Model(escrow).
		Where("order_id = ?", orderID).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("escrow for order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get escrow transaction: %w", err)
	}
	return escrow, nil
}

func (r *escrowRepository) UpdateStatusIf(ctx context.Context, orderID string, from models.EscrowStatus, to models.EscrowStatus) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*models.EscrowTransaction)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("status = ?", from).
		Exec(ctx)

	if err != nil {
		return false, fmt.Errorf("failed to update escrow status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}
