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

// OwnershipChecker is the listing collaborator: it answers whether a user
// currently owns a listed product. Listing CRUD itself lives outside the
// core.
type OwnershipChecker interface {
	OwnsProduct(ctx context.Context, userID string, productID int64) (bool, error)
}

// BarterEngine owns the bilateral proposal state machine: pending ->
// accepted | rejected | expired, all terminal. Unlike delivery
// confirmation a second response is an error, never a silent overwrite:
// the two outcomes are materially different, so a conflict must surface.
type BarterEngine struct {
	repo      repositories.BarterRepository
	ownership OwnershipChecker
	guard     *Guard
	notifier  *Notifier
	audit     *AuditWriter
	ids       *IDGenerator
}

func NewBarterEngine(repo repositories.BarterRepository, ownership OwnershipChecker, guard *Guard, notifier *Notifier, audit *AuditWriter) *BarterEngine {
	engine := &BarterEngine{
		repo:      repo,
		ownership: ownership,
		guard:     guard,
		notifier:  notifier,
		audit:     audit,
	}
	engine.ids = NewIDGenerator("BTR", repo.ProposalIDExists)
	return engine
}

// Propose creates a pending proposal after verifying the proposer owns the
// offered product and no identical proposal is already pending between the
// two users.
func (e *BarterEngine) Propose(ctx context.Context, proposerID, recipientID string, proposerProductID, recipientProductID int64) (*models.BarterProposal, error) {
	ctx, cancel := context.WithTimeout(ctx, config.TransitionTimeout)
	defer cancel()

	if proposerID == "" || recipientID == "" {
		return nil, fmt.Errorf("proposal requires proposer and recipient: %w", ErrInvalidTransition)
	}
	if proposerID == recipientID {
		return nil, fmt.Errorf("proposer and recipient must differ: %w", ErrInvalidTransition)
	}

	owns, err := e.ownership.OwnsProduct(ctx, proposerID, proposerProductID)
	if err != nil {
		return nil, classifyStorage(err)
	}
	if !owns {
		return nil, fmt.Errorf("proposer %s does not own product %d: %w", proposerID, proposerProductID, ErrNotAuthorized)
	}

	pending, err := e.repo.GetPendingBetweenUsers(ctx, proposerID, recipientID)
	if err != nil {
		return nil, classifyStorage(err)
	}
	for _, p := range pending {
		if p.ProposerProductID == proposerProductID && p.RecipientProductID == recipientProductID {
			return nil, fmt.Errorf("identical proposal %s already pending: %w", p.ProposalID, ErrInvalidTransition)
		}
	}

	proposalID, err := e.ids.Generate(ctx)
	if err != nil {
		return nil, classifyStorage(err)
	}

	proposal := &models.BarterProposal{
		ProposalID:         proposalID,
		ProposerID:         proposerID,
		RecipientID:        recipientID,
		ProposerProductID:  proposerProductID,
		RecipientProductID: recipientProductID,
	}
	if err := e.repo.Create(ctx, proposal); err != nil {
		return nil, classifyStorage(err)
	}

	if notification, err := models.NewBarterReceivedNotification(recipientID, proposalID); err == nil {
		e.notifier.Notify(ctx, notification)
	}

	return proposal, nil
}

// ListForUser returns the actor's proposals in the given status, as
// proposer or recipient.
func (e *BarterEngine) ListForUser(ctx context.Context, userID string, status models.BarterStatus) ([]*models.BarterProposal, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	proposals, err := e.repo.GetUserProposals(ctx, userID, status)
	if err != nil {
		return nil, classifyStorage(err)
	}
	return proposals, nil
}

// Respond resolves a pending proposal. Recipient only; strictly
// once.
func (e *BarterEngine) Respond(ctx context.Context, proposalID, actorID string, decision models.BarterStatus) (*models.BarterProposal, error) {
	ctx, cancel := context.WithTimeout(ctx, config.TransitionTimeout)
	defer cancel()

	if decision != models.BarterAccepted && decision != models.BarterRejected {
		return nil, fmt.Errorf("decision must be accepted or rejected, got %q: %w", decision, ErrInvalidTransition)
	}

	proposal, err := e.repo.GetByProposalID(ctx, proposalID)
	if err != nil {
		return nil, classifyStorage(err)
	}
	if err := e.guard.AuthorizeBarter(actorID, proposal, ActionRespondBarter); err != nil {
		return nil, err
	}

	if proposal.Status != models.BarterPending {
		return nil, fmt.Errorf("proposal %s is already %s: %w", proposalID, proposal.Status, ErrInvalidTransition)
	}

	start := time.Now()
	applied, err := e.repo.UpdateStatusIf(ctx, proposalID, models.BarterPending, decision)
	logger.LogTransition("barter", proposalID, string(models.BarterPending), string(decision), time.Since(start), err)
	if err != nil {
		return nil, classifyStorage(err)
	}
	if !applied {
		// A concurrent response or the expiry sweep won. Never mask it.
		current, err := e.repo.GetByProposalID(ctx, proposalID)
		if err != nil {
			return nil, classifyStorage(err)
		}
		return nil, fmt.Errorf("proposal %s was concurrently resolved to %s: %w", proposalID, current.Status, ErrInvalidTransition)
	}

	proposal.Status = decision

	if notification, err := models.NewBarterNotification(proposal.ProposerID, proposalID, decision); err == nil {
		e.notifier.Notify(ctx, notification)
	}

	auditType := models.AuditBarterRejected
	if decision == models.BarterAccepted {
		auditType = models.AuditBarterAccepted
	}
	if event, err := models.NewAuditEvent(auditType, models.AuditSuccess, actorID, "",
		fmt.Sprintf("barter proposal %s %s by recipient", proposalID, decision), 0); err == nil {
		e.audit.Record(ctx, event)
	}

	return proposal, nil
}

// ExpireStale retires pending proposals past their window and notifies
// each proposer once.
func (e *BarterEngine) ExpireStale(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	expired, err := e.repo.ExpireStale(ctx)
	if err != nil {
		return 0, classifyStorage(err)
	}

	for _, proposal := range expired {
		if notification, err := models.NewBarterNotification(proposal.ProposerID, proposal.ProposalID, models.BarterExpired); err == nil {
			e.notifier.Notify(ctx, notification)
		}
		if event, err := models.NewAuditEvent(models.AuditBarterExpired, models.AuditInfo, proposal.ProposerID, "",
			fmt.Sprintf("barter proposal %s expired unanswered", proposal.ProposalID), 0); err == nil {
			e.audit.Record(ctx, event)
		}
	}

	return len(expired), nil
}

// StartExpirySweeper runs ExpireStale on an interval until ctx is
// cancelled.
func (e *BarterEngine) StartExpirySweeper(ctx context.Context) {
	ticker := time.NewTicker(config.BarterExpirySweep)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.ExpireStale(ctx); err != nil {
					logger.LogError("Barter expiry sweep failed", err)
				}
			}
		}
	}()
}
