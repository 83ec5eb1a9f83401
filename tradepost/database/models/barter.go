package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BarterStatus string

const (
	BarterPending  BarterStatus = "pending"
	BarterAccepted BarterStatus = "accepted"
	BarterRejected BarterStatus = "rejected"
	BarterExpired  BarterStatus = "expired"
)

func (s BarterStatus) Terminal() bool {
	return s != BarterPending
}

type BarterProposal struct {
	bun.BaseModel `bun:"table:barter_proposals,alias:bp"`

	ID                 int64        `bun:"id,pk,autoincrement"`
	ProposalID         string       `bun:"proposal_id,notnull,unique"`
	ProposerID         string       `bun:"proposer_id,notnull"`
	RecipientID        string       `bun:"recipient_id,notnull"`
	ProposerProductID  int64        `bun:"proposer_product_id,notnull"`
	RecipientProductID int64        `bun:"recipient_product_id,notnull"`
	Status             BarterStatus `bun:"status,notnull"`
	ExpiresAt          time.Time    `bun:"expires_at,notnull"`
	CreatedAt          time.Time    `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt          time.Time    `bun:"updated_at,notnull,default:current_timestamp"`
}
