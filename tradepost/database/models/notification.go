package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationPayment NotificationType = "payment"
	NotificationOrder   NotificationType = "order"
	NotificationBarter  NotificationType = "barter"
)

// Notification is a pending-read notice stored in the document store.
// Delivery (push/email) is handled by an external collaborator reading
// these records; the core only writes them.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Type      NotificationType   `bson:"type"`
	Title     string             `bson:"title"`
	Message   string             `bson:"message"`
	LinkURL   string             `bson:"link_url,omitempty"`
	IsRead    bool               `bson:"is_read"`
	CreatedAt time.Time          `bson:"created_at"`
}

// NewPaymentNotification notifies a seller that escrowed funds for an order
// were released to them.
func NewPaymentNotification(sellerID, orderID string, amount int64) (*Notification, error) {
	if sellerID == "" || orderID == "" {
		return nil, fmt.Errorf("payment notification requires seller and order: seller=%q order=%q", sellerID, orderID)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("payment notification requires a positive amount, got %d", amount)
	}
	return &Notification{
		UserID:    sellerID,
		Type:      NotificationPayment,
		Title:     "Funds released",
		Message:   fmt.Sprintf("Escrow for order %s has been released to your balance.", orderID),
		LinkURL:   "/orders/" + orderID,
		CreatedAt: time.Now(),
	}, nil
}

// NewOrderNotification covers order lifecycle notices (cancellation, refund).
func NewOrderNotification(userID, orderID, title, message string) (*Notification, error) {
	if userID == "" || orderID == "" {
		return nil, fmt.Errorf("order notification requires user and order: user=%q order=%q", userID, orderID)
	}
	if title == "" || message == "" {
		return nil, fmt.Errorf("order notification requires title and message")
	}
	return &Notification{
		UserID:    userID,
		Type:      NotificationOrder,
		Title:     title,
		Message:   message,
		LinkURL:   "/orders/" + orderID,
		CreatedAt: time.Now(),
	}, nil
}

// NewBarterReceivedNotification tells a recipient a proposal awaits their
// decision.
func NewBarterReceivedNotification(recipientID, proposalID string) (*Notification, error) {
	if recipientID == "" || proposalID == "" {
		return nil, fmt.Errorf("barter notification requires recipient and proposal: recipient=%q proposal=%q", recipientID, proposalID)
	}
	return &Notification{
		UserID:    recipientID,
		Type:      NotificationBarter,
		Title:     "New barter proposal",
		Message:   fmt.Sprintf("You received barter proposal %s.", proposalID),
		LinkURL:   "/barters/" + proposalID,
		CreatedAt: time.Now(),
	}, nil
}

// NewBarterNotification tells a proposer how their proposal was resolved.
func NewBarterNotification(proposerID, proposalID string, outcome BarterStatus) (*Notification, error) {
	if proposerID == "" || proposalID == "" {
		return nil, fmt.Errorf("barter notification requires proposer and proposal: proposer=%q proposal=%q", proposerID, proposalID)
	}
	if !outcome.Terminal() {
		return nil, fmt.Errorf("barter notification requires a terminal outcome, got %q", outcome)
	}
	return &Notification{
		UserID:    proposerID,
		Type:      NotificationBarter,
		Title:     "Barter proposal " + string(outcome),
		Message:   fmt.Sprintf("Your barter proposal %s was %s.", proposalID, outcome),
		LinkURL:   "/barters/" + proposalID,
		CreatedAt: time.Now(),
	}, nil
}
