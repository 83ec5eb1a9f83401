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

type BarterRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, proposal *models.BarterProposal) error
	GetByProposalID(ctx context.Context, proposalID string) (*models.BarterProposal, error)
	GetUserProposals(ctx context.Context, userID string, status models.BarterStatus) ([]*models.BarterProposal, error)
	GetPendingBetweenUsers(ctx context.Context, user1ID, user2ID string) ([]*models.BarterProposal, error)
	// UpdateStatusIf resolves the proposal only while it is still pending.
	// Returns false when another writer resolved it first.
	UpdateStatusIf(ctx context.Context, proposalID string, from models.BarterStatus, to models.BarterStatus) (bool, error)
	// ExpireStale retires pending proposals past their expiry window and
	// returns the rows it moved, so callers can notify each proposer.
	ExpireStale(ctx context.Context) ([]*models.BarterProposal, error)
	ProposalIDExists(ctx context.Context, proposalID string) (bool, error)
}

type barterRepository struct {
	db       *bun.DB
	resolved *lru.Cache
}

func NewBarterRepository(db *bun.DB) BarterRepository {
	cache, _ := lru.New(config.TerminalCacheSize)
	return &barterRepository{db: db, resolved: cache}
}

func (r *barterRepository) DB() *bun.DB {
	return r.db
}

func (r *barterRepository) Create(ctx context.Context, proposal *models.BarterProposal) error {
	now := time.Now()
	proposal.Status = models.BarterPending
	proposal.CreatedAt = now
	proposal.UpdatedAt = now
	if proposal.ExpiresAt.IsZero() {
		proposal.ExpiresAt = now.Add(config.BarterProposalTTL)
	}

	_, err := r.db.NewInsert().Model(proposal).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create barter proposal: %w", err)
	}
	return nil
}

func (r *barterRepository) GetByProposalID(ctx context.Context, proposalID string) (*models.BarterProposal, error) {
	if cached, ok := r.resolved.Get(proposalID); ok {
		return cached.(*models.BarterProposal), nil
	}

	proposal := new(models.BarterProposal)
	err := r.db.NewSelect().
		Model(proposal).
		Where("proposal_id = ?", proposalID).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("barter proposal %s: %w", proposalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get barter proposal: %w", err)
	}

	if proposal.Status.Terminal() {
		r.resolved.Add(proposalID, proposal)
	}
	return proposal, nil
}

func (r *barterRepository) GetUserProposals(ctx context.Context, userID string, status models.BarterStatus) ([]*models.BarterProposal, error) {
	var proposals []*models.BarterProposal
	err := r.db.NewSelect().
		Model(&proposals).
		Where("(proposer_id = ? OR recipient_id = ?) AND status = ?", userID, userID, status).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get user proposals: %w", err)
	}
	return proposals, nil
}

func (r *barterRepository) GetPendingBetweenUsers(ctx context.Context, user1ID, user2ID string) ([]*models.BarterProposal, error) {
	var proposals []*models.BarterProposal
	err := r.db.NewSelect().
		Model(&proposals).
		Where("((proposer_id = ? AND recipient_id = ?) OR (proposer_id = ? AND recipient_id = ?)) AND status = ?",
			user1ID, user2ID, user2ID, user1ID, models.BarterPending).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get pending proposals between users: %w", err)
	}
	return proposals, nil
}

func (r *barterRepository) UpdateStatusIf(ctx context.Context, proposalID string, from models.BarterStatus, to models.BarterStatus) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*models.BarterProposal)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("proposal_id = ?", proposalID).
		Where("status = ?", from).
		Exec(ctx)

	if err != nil {
		return false, fmt.Errorf("failed to update proposal status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *barterRepository) ExpireStale(ctx context.Context) ([]*models.BarterProposal, error) {
	var expired []*models.BarterProposal
	err := r.db.NewUpdate().
		Model((*models.BarterProposal)(nil)).
		Set("status = ?", models.BarterExpired).
		Set("updated_at = ?", time.Now()).
		Where("status = ? AND expires_at <= ?", models.BarterPending, time.Now()).
		Returning("*").
		Scan(ctx, &expired)

	if err != nil {
		return nil, fmt.Errorf("failed to expire stale proposals: %w", err)
	}

	if len(expired) > 0 {
		slog.Info("Expired stale barter proposals",
			slog.String("type", "db"),
			slog.Int("count", len(expired)))
	}
	return expired, nil
}

func (r *barterRepository) ProposalIDExists(ctx context.Context, proposalID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.BarterProposal)(nil)).
		Where("proposal_id = ?", proposalID).
		Exists(ctx)

	return exists, err
}
