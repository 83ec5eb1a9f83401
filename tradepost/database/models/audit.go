package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditEventType string

const (
	AuditOrderCreated           AuditEventType = "order_created"
	AuditOrderDeliveryConfirmed AuditEventType = "order_delivery_confirmed"
	AuditOrderCancelled         AuditEventType = "order_cancelled"
	AuditEscrowReleased         AuditEventType = "escrow_released"
	AuditEscrowRefunded         AuditEventType = "escrow_refunded"
	AuditBarterAccepted         AuditEventType = "barter_accepted"
	AuditBarterRejected         AuditEventType = "barter_rejected"
	AuditBarterExpired          AuditEventType = "barter_expired"
)

type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
	AuditPending AuditStatus = "pending"
	AuditInfo    AuditStatus = "info"
)

// AuditEvent is an append-only forensic record. Events are never mutated
// or deleted once written.
type AuditEvent struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ProfileID   string             `bson:"profile_id"`
	Type        AuditEventType     `bson:"type"`
	Status      AuditStatus        `bson:"status"`
	Amount      int64              `bson:"amount,omitempty"`
	Description string             `bson:"description"`
	OrderID     string             `bson:"order_id,omitempty"`
	Metadata    map[string]string  `bson:"metadata,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// orderScoped lists the event types that must carry an order id.
var orderScoped = map[AuditEventType]bool{
	AuditOrderCreated:           true,
	AuditOrderDeliveryConfirmed: true,
	AuditOrderCancelled:         true,
	AuditEscrowReleased:         true,
	AuditEscrowRefunded:         true,
}

// NewAuditEvent validates the per-type required fields at construction time.
func NewAuditEvent(typ AuditEventType, status AuditStatus, profileID, orderID, description string, amount int64) (*AuditEvent, error) {
	if profileID == "" {
		return nil, fmt.Errorf("audit event %q requires an actor profile id", typ)
	}
	if description == "" {
		return nil, fmt.Errorf("audit event %q requires a description", typ)
	}
	if orderScoped[typ] && orderID == "" {
		return nil, fmt.Errorf("audit event %q requires an order id", typ)
	}
	switch status {
	case AuditSuccess, AuditFailure, AuditPending, AuditInfo:
	default:
		return nil, fmt.Errorf("invalid audit status %q", status)
	}
	return &AuditEvent{
		ProfileID:   profileID,
		Type:        typ,
		Status:      status,
		Amount:      amount,
		Description: description,
		OrderID:     orderID,
		CreatedAt:   time.Now(),
	}, nil
}
