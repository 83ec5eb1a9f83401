package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
)

func (s EscrowStatus) Terminal() bool {
	return s == EscrowReleased || s == EscrowRefunded
}

// EscrowTransaction records the fund-holding state for exactly one order.
// It is the source of truth for whether a payout may proceed; it never
// moves money itself.
type EscrowTransaction struct {
	bun.BaseModel `bun:"table:escrow_transactions,alias:et"`

	ID        int64        `bun:"id,pk,autoincrement"`
	OrderID   string       `bun:"order_id,notnull,unique"`
	Status    EscrowStatus `bun:"status,notnull"`
	CreatedAt time.Time    `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time    `bun:"updated_at,notnull,default:current_timestamp"`
}
