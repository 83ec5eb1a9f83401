package commerce

import (
	"fmt"

	"github.com/mkarlovic/tradepost/tradepost/database/models"
)

// Action names a transition an actor is asking to perform.
type Action string

const (
	ActionConfirmDelivery Action = "confirm_delivery"
	ActionCancelOrder     Action = "cancel_order"
	ActionShipOrder       Action = "ship_order"
	ActionMarkOutForDel   Action = "mark_out_for_delivery"
	ActionReleaseEscrow   Action = "release_escrow"
	ActionRespondBarter   Action = "respond_barter"
)

// Guard decides whether an actor may invoke a transition on an entity.
// It only authorizes; identity verification happens upstream. Deny reasons
// distinguish missing from unauthorized internally, but both collapse to a
// generic forbidden outcome at the request layer.
type Guard struct {
	admins map[string]struct{}
}

func NewGuard(adminIDs []string) *Guard {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Guard{admins: admins}
}

func (g *Guard) IsAdmin(actorID string) bool {
	_, ok := g.admins[actorID]
	return ok
}

// AuthorizeOrder enforces the per-transition actor rules for orders.
func (g *Guard) AuthorizeOrder(actorID string, order *models.Order, action Action) error {
	if order == nil {
		return fmt.Errorf("order missing: %w", ErrNotFound)
	}

	switch action {
	case ActionConfirmDelivery, ActionReleaseEscrow:
		if actorID != order.BuyerID {
			return fmt.Errorf("actor %s may not %s order %s: %w", actorID, action, order.OrderID, ErrNotAuthorized)
		}
	case ActionShipOrder, ActionMarkOutForDel:
		if actorID != order.SellerID {
			return fmt.Errorf("actor %s may not %s order %s: %w", actorID, action, order.OrderID, ErrNotAuthorized)
		}
	case ActionCancelOrder:
		if actorID != order.BuyerID && actorID != order.SellerID && !g.IsAdmin(actorID) {
			return fmt.Errorf("actor %s may not %s order %s: %w", actorID, action, order.OrderID, ErrNotAuthorized)
		}
	default:
		return fmt.Errorf("unknown order action %q: %w", action, ErrNotAuthorized)
	}
	return nil
}

// AuthorizeBarter enforces that only the recipient resolves a proposal.
func (g *Guard) AuthorizeBarter(actorID string, proposal *models.BarterProposal, action Action) error {
	if proposal == nil {
		return fmt.Errorf("barter proposal missing: %w", ErrNotFound)
	}

	switch action {
	case ActionRespondBarter:
		if actorID != proposal.RecipientID {
			return fmt.Errorf("actor %s may not %s proposal %s: %w", actorID, action, proposal.ProposalID, ErrNotAuthorized)
		}
	default:
		return fmt.Errorf("unknown barter action %q: %w", action, ErrNotAuthorized)
	}
	return nil
}
