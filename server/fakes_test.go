package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkarlovic/tradepost/tradepost/database/models"
	"github.com/mkarlovic/tradepost/tradepost/database/repositories"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repositories backing the handler tests. They mirror the
// conditional-write contract of the real ones: status updates apply only
// when the current status still matches.

type memStore struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	escrows   map[string]*models.EscrowTransaction
	proposals map[string]*models.BarterProposal

	orderUpdateErr error
}

func newMemStore() *memStore {
	return &memStore{
		orders:    make(map[string]*models.Order),
		escrows:   make(map[string]*models.EscrowTransaction),
		proposals: make(map[string]*models.BarterProposal),
	}
}

func (s *memStore) addOrder(order *models.Order, escrowStatus models.EscrowStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.OrderID] = order
	s.escrows[order.OrderID] = &models.EscrowTransaction{OrderID: order.OrderID, Status: escrowStatus}
}

func (s *memStore) addProposal(p *models.BarterProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.ProposalID] = p
}

type memOrderRepo struct{ store *memStore }

func (r *memOrderRepo) DB() *bun.DB { return nil }

func (r *memOrderRepo) CreateWithEscrow(ctx context.Context, order *models.Order) error {
	order.Status = models.OrderProcessing
	r.store.addOrder(order, models.EscrowHeld)
	return nil
}

func (r *memOrderRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	order, ok := r.store.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, repositories.ErrNotFound)
	}
	copied := *order
	return &copied, nil
}

func (r *memOrderRepo) GetByBuyerID(ctx context.Context, buyerID string) ([]*models.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Order
	for _, o := range r.store.orders {
		if o.BuyerID == buyerID {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memOrderRepo) GetBySellerID(ctx context.Context, sellerID string) ([]*models.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Order
	for _, o := range r.store.orders {
		if o.SellerID == sellerID {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memOrderRepo) UpdateStatusIf(ctx context.Context, orderID string, from []models.OrderStatus, to models.OrderStatus, deliveredAt *time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.orderUpdateErr != nil {
		return false, r.store.orderUpdateErr
	}
	order, ok := r.store.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if order.Status == f {
			order.Status = to
			if deliveredAt != nil {
				order.ActualDeliveryDate = deliveredAt
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *memOrderRepo) OrderIDExists(ctx context.Context, orderID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.orders[orderID]
	return ok, nil
}

type memEscrowRepo struct{ store *memStore }

func (r *memEscrowRepo) DB() *bun.DB { return nil }

func (r *memEscrowRepo) GetByOrderID(ctx context.Context, orderID string) (*models.EscrowTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	escrow, ok := r.store.escrows[orderID]
	if !ok {
		return nil, fmt.Errorf("escrow for order %s: %w", orderID, repositories.ErrNotFound)
	}
	copied := *escrow
	return &copied, nil
}

func (r *memEscrowRepo) UpdateStatusIf(ctx context.Context, orderID string, from, to models.EscrowStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	escrow, ok := r.store.escrows[orderID]
	if !ok || escrow.Status != from {
		return false, nil
	}
	escrow.Status = to
	return true, nil
}

type memBarterRepo struct{ store *memStore }

func (r *memBarterRepo) DB() *bun.DB { return nil }

func (r *memBarterRepo) Create(ctx context.Context, proposal *models.BarterProposal) error {
	proposal.Status = models.BarterPending
	r.store.addProposal(proposal)
	return nil
}

func (r *memBarterRepo) GetByProposalID(ctx context.Context, proposalID string) (*models.BarterProposal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	proposal, ok := r.store.proposals[proposalID]
	if !ok {
		return nil, fmt.Errorf("barter proposal %s: %w", proposalID, repositories.ErrNotFound)
	}
	copied := *proposal
	return &copied, nil
}

func (r *memBarterRepo) GetUserProposals(ctx context.Context, userID string, status models.BarterStatus) ([]*models.BarterProposal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.BarterProposal
	for _, p := range r.store.proposals {
		if (p.ProposerID == userID || p.RecipientID == userID) && p.Status == status {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memBarterRepo) GetPendingBetweenUsers(ctx context.Context, user1ID, user2ID string) ([]*models.BarterProposal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var pending []*models.BarterProposal
	for _, p := range r.store.proposals {
		if p.Status != models.BarterPending {
			continue
		}
		if (p.ProposerID == user1ID && p.RecipientID == user2ID) ||
			(p.ProposerID == user2ID && p.RecipientID == user1ID) {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

func (r *memBarterRepo) UpdateStatusIf(ctx context.Context, proposalID string, from, to models.BarterStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	proposal, ok := r.store.proposals[proposalID]
	if !ok || proposal.Status != from {
		return false, nil
	}
	proposal.Status = to
	return true, nil
}

func (r *memBarterRepo) ExpireStale(ctx context.Context) ([]*models.BarterProposal, error) {
	return nil, nil
}

func (r *memBarterRepo) ProposalIDExists(ctx context.Context, proposalID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.proposals[proposalID]
	return ok, nil
}

type memNotificationRepo struct {
	mu       sync.Mutex
	inserted []*models.Notification
}

func (r *memNotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	r.inserted = append(r.inserted, n)
	return nil
}

func (r *memNotificationRepo) ListByUser(ctx context.Context, userID string, limit int64) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.inserted {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memNotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.inserted {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) MarkRead(ctx context.Context, userID string, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.inserted {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return fmt.Errorf("notification %s for user %s: %w", id.Hex(), userID, repositories.ErrNotFound)
}

type memAuditRepo struct {
	mu       sync.Mutex
	inserted []*models.AuditEvent
}

func (r *memAuditRepo) Insert(ctx context.Context, event *models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, event)
	return nil
}

func (r *memAuditRepo) ListByProfile(ctx context.Context, profileID string, limit int64) ([]*models.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditEvent
	for _, ev := range r.inserted {
		if ev.ProfileID == profileID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *memAuditRepo) ListByOrder(ctx context.Context, orderID string) ([]*models.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditEvent
	for _, ev := range r.inserted {
		if ev.OrderID == orderID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type memOwnership struct{ owns map[string][]int64 }

func (o *memOwnership) OwnsProduct(ctx context.Context, userID string, productID int64) (bool, error) {
	for _, id := range o.owns[userID] {
		if id == productID {
			return true, nil
		}
	}
	return false, nil
}
