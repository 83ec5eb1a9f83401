package commerce

import (
	"context"
	"sync"
	"time"

	"github.com/mkarlovic/tradepost/tradepost/database/models"
	"github.com/mkarlovic/tradepost/tradepost/database/repositories"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStore emulates the relational store with the same conditional-write
// semantics the real repositories get from SQL.
type fakeStore struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	escrows   map[string]*models.EscrowTransaction
	proposals map[string]*models.BarterProposal

	orderUpdateErr  error
	escrowUpdateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    make(map[string]*models.Order),
		escrows:   make(map[string]*models.EscrowTransaction),
		proposals: make(map[string]*models.BarterProposal),
	}
}

func (s *fakeStore) addOrder(order *models.Order, escrowStatus models.EscrowStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.OrderID] = order
	s.escrows[order.OrderID] = &models.EscrowTransaction{
		OrderID: order.OrderID,
		Status:  escrowStatus,
	}
}

func (s *fakeStore) addProposal(p *models.BarterProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.ProposalID] = p
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	if o.ActualDeliveryDate != nil {
		d := *o.ActualDeliveryDate
		c.ActualDeliveryDate = &d
	}
	return &c
}

type fakeOrderRepo struct{ s *fakeStore }

var _ repositories.OrderRepository = (*fakeOrderRepo)(nil)

func (r *fakeOrderRepo) DB() *bun.DB { return nil }

func (r *fakeOrderRepo) CreateWithEscrow(_ context.Context, order *models.Order) error {
	order.Status = models.OrderProcessing
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	r.s.addOrder(order, models.EscrowHeld)
	return nil
}

func (r *fakeOrderRepo) GetByOrderID(_ context.Context, orderID string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *fakeOrderRepo) GetByBuyerID(_ context.Context, buyerID string) ([]*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Order
	for _, o := range r.s.orders {
		if o.BuyerID == buyerID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) GetBySellerID(_ context.Context, sellerID string) ([]*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Order
	for _, o := range r.s.orders {
		if o.SellerID == sellerID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateStatusIf(_ context.Context, orderID string, from []models.OrderStatus, to models.OrderStatus, deliveredAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.orderUpdateErr != nil {
		return false, r.s.orderUpdateErr
	}
	order, ok := r.s.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if order.Status == f {
			order.Status = to
			order.UpdatedAt = time.Now()
			if deliveredAt != nil {
				order.ActualDeliveryDate = deliveredAt
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeOrderRepo) OrderIDExists(_ context.Context, orderID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.orders[orderID]
	return ok, nil
}

type fakeEscrowRepo struct{ s *fakeStore }

var _ repositories.EscrowRepository = (*fakeEscrowRepo)(nil)

func (r *fakeEscrowRepo) DB() *bun.DB { return nil }

func (r *fakeEscrowRepo) GetByOrderID(_ context.Context, orderID string) (*models.EscrowTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	escrow, ok := r.s.escrows[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *escrow
	return &c, nil
}

func (r *fakeEscrowRepo) UpdateStatusIf(_ context.Context, orderID string, from, to models.EscrowStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.escrowUpdateErr != nil {
		return false, r.s.escrowUpdateErr
	}
	escrow, ok := r.s.escrows[orderID]
	if !ok {
		return false, nil
	}
	if escrow.Status != from {
		return false, nil
	}
	escrow.Status = to
	escrow.UpdatedAt = time.Now()
	return true, nil
}

type fakeBarterRepo struct{ s *fakeStore }

var _ repositories.BarterRepository = (*fakeBarterRepo)(nil)

func (r *fakeBarterRepo) DB() *bun.DB { return nil }

func (r *fakeBarterRepo) Create(_ context.Context, p *models.BarterProposal) error {
	p.Status = models.BarterPending
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	if p.ExpiresAt.IsZero() {
		p.ExpiresAt = p.CreatedAt.Add(7 * 24 * time.Hour)
	}
	r.s.addProposal(p)
	return nil
}

func (r *fakeBarterRepo) GetByProposalID(_ context.Context, proposalID string) (*models.BarterProposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proposals[proposalID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *fakeBarterRepo) GetUserProposals(_ context.Context, userID string, status models.BarterStatus) ([]*models.BarterProposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.BarterProposal
	for _, p := range r.s.proposals {
		if (p.ProposerID == userID || p.RecipientID == userID) && p.Status == status {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeBarterRepo) GetPendingBetweenUsers(_ context.Context, user1ID, user2ID string) ([]*models.BarterProposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.BarterProposal
	for _, p := range r.s.proposals {
		between := (p.ProposerID == user1ID && p.RecipientID == user2ID) ||
			(p.ProposerID == user2ID && p.RecipientID == user1ID)
		if between && p.Status == models.BarterPending {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeBarterRepo) UpdateStatusIf(_ context.Context, proposalID string, from, to models.BarterStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proposals[proposalID]
	if !ok {
		return false, nil
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeBarterRepo) ExpireStale(_ context.Context) ([]*models.BarterProposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var expired []*models.BarterProposal
	now := time.Now()
	for _, p := range r.s.proposals {
		if p.Status == models.BarterPending && !p.ExpiresAt.After(now) {
			p.Status = models.BarterExpired
			p.UpdatedAt = now
			c := *p
			expired = append(expired, &c)
		}
	}
	return expired, nil
}

func (r *fakeBarterRepo) ProposalIDExists(_ context.Context, proposalID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.proposals[proposalID]
	return ok, nil
}

type fakeNotificationRepo struct {
	mu        sync.Mutex
	inserted  []*models.Notification
	insertErr error
}

var _ repositories.NotificationRepository = (*fakeNotificationRepo)(nil)

func (r *fakeNotificationRepo) Insert(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	n.ID = primitive.NewObjectID()
	r.inserted = append(r.inserted, n)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID string, _ int64) ([]*models.Notification, error) {
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

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
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

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID string, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.inserted {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r *fakeNotificationRepo) byType(typ models.NotificationType) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.inserted {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type fakeAuditRepo struct {
	mu        sync.Mutex
	inserted  []*models.AuditEvent
	insertErr error
}

var _ repositories.AuditRepository = (*fakeAuditRepo)(nil)

func (r *fakeAuditRepo) Insert(_ context.Context, e *models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	e.ID = primitive.NewObjectID()
	r.inserted = append(r.inserted, e)
	return nil
}

func (r *fakeAuditRepo) ListByProfile(_ context.Context, profileID string, _ int64) ([]*models.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditEvent
	for _, e := range r.inserted {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) ListByOrder(_ context.Context, orderID string) ([]*models.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditEvent
	for _, e := range r.inserted {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) byType(typ models.AuditEventType) []*models.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditEvent
	for _, e := range r.inserted {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fakeOwnership struct {
	owns map[string][]int64
	err  error
}

func (f *fakeOwnership) OwnsProduct(_ context.Context, userID string, productID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.owns[userID] {
		if id == productID {
			return true, nil
		}
	}
	return false, nil
}

// testEnv wires the engines to fakes once per test.
type testEnv struct {
	store         *fakeStore
	notifications *fakeNotificationRepo
	audits        *fakeAuditRepo
	ownership     *fakeOwnership
	guard         *Guard
	escrow        *EscrowLedger
	orders        *OrderEngine
	barter        *BarterEngine
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	notifications := &fakeNotificationRepo{}
	audits := &fakeAuditRepo{}
	ownership := &fakeOwnership{owns: make(map[string][]int64)}

	guard := NewGuard([]string{"admin-1"})
	notifier := NewNotifier(notifications)
	auditWriter := NewAuditWriter(audits)
	escrow := NewEscrowLedger(&fakeEscrowRepo{s: store}, &fakeOrderRepo{s: store}, guard, notifier, auditWriter)
	orders := NewOrderEngine(&fakeOrderRepo{s: store}, escrow, guard, notifier, auditWriter)
	barter := NewBarterEngine(&fakeBarterRepo{s: store}, ownership, guard, notifier, auditWriter)

	return &testEnv{
		store:         store,
		notifications: notifications,
		audits:        audits,
		ownership:     ownership,
		guard:         guard,
		escrow:        escrow,
		orders:        orders,
		barter:        barter,
	}
}
