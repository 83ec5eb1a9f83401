package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/mkarlovic/tradepost/tradepost/commerce"
	"github.com/mkarlovic/tradepost/tradepost/config"
	"github.com/mkarlovic/tradepost/tradepost/database/models"
	"github.com/mkarlovic/tradepost/tradepost/database/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// mapError translates the commerce taxonomy into HTTP responses. NotFound
// and NotAuthorized share one generic forbidden body so clients cannot
// probe for entity existence.
func mapError(c *fiber.Ctx, err error) error {
	switch {
	case commerce.Forbidden(err):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "forbidden",
		})
	case errors.Is(err, commerce.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case commerce.Transient(err):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "temporarily unavailable, retry the request",
		})
	default:
		slog.Error("Unhandled handler error", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}

type createOrderRequest struct {
	SellerID    string `json:"seller_id"`
	TotalAmount int64  `json:"total_amount"`
}

func (s *Server) createOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	order, err := s.orders.CreateOrder(c.UserContext(), actorID(c), req.SellerID, req.TotalAmount)
	if err != nil {
		if errors.Is(err, commerce.ErrInvalidTransition) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (s *Server) listOrders(c *fiber.Ctx) error {
	purchases, sales, err := s.orders.ListForUser(c.UserContext(), actorID(c))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"purchases": purchases, "sales": sales})
}

func (s *Server) orderAuditTrail(c *fiber.Ctx) error {
	order, err := s.orders.Get(c.UserContext(), c.Params("id"), actorID(c))
	if err != nil {
		return mapError(c, err)
	}
	events, err := s.audit.ListByOrder(c.UserContext(), order.OrderID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

func (s *Server) confirmReceipt(c *fiber.Ctx) error {
	order, err := s.orders.ConfirmReceipt(c.UserContext(), c.Params("id"), actorID(c))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"status": order.Status})
}

func (s *Server) cancelOrder(c *fiber.Ctx) error {
	order, err := s.orders.Cancel(c.UserContext(), c.Params("id"), actorID(c))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"status": order.Status})
}

func (s *Server) shipOrder(c *fiber.Ctx) error {
	order, err := s.orders.MarkShipped(c.UserContext(), c.Params("id"), actorID(c))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"status": order.Status})
}

func (s *Server) markOutForDelivery(c *fiber.Ctx) error {
	order, err := s.orders.MarkOutForDelivery(c.UserContext(), c.Params("id"), actorID(c))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"status": order.Status})
}

func (s *Server) releaseEscrow(c *fiber.Ctx) error {
	escrow, err := s.escrow.Release(c.UserContext(), c.Params("id"), actorID(c))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"status": escrow.Status})
}

type createBarterRequest struct {
	RecipientID        string `json:"recipient_id"`
	ProposerProductID  int64  `json:"proposer_product_id"`
	RecipientProductID int64  `json:"recipient_product_id"`
}

func (s *Server) createBarter(c *fiber.Ctx) error {
	var req createBarterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	proposal, err := s.barter.Propose(c.UserContext(), actorID(c), req.RecipientID,
		req.ProposerProductID, req.RecipientProductID)
	if err != nil {
		if errors.Is(err, commerce.ErrInvalidTransition) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(proposal)
}

func (s *Server) listBarters(c *fiber.Ctx) error {
	status := models.BarterStatus(c.Query("status", string(models.BarterPending)))
	switch status {
	case models.BarterPending, models.BarterAccepted, models.BarterRejected, models.BarterExpired:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown proposal status"})
	}

	proposals, err := s.barter.ListForUser(c.UserContext(), actorID(c), status)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"proposals": proposals})
}

type respondBarterRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) respondBarter(c *fiber.Ctx) error {
	var req respondBarterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	decision := models.BarterStatus(req.Decision)
	if decision != models.BarterAccepted && decision != models.BarterRejected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "decision must be accepted or rejected"})
	}

	proposal, err := s.barter.Respond(c.UserContext(), c.Params("id"), actorID(c), decision)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"status": proposal.Status})
}

func (s *Server) listNotifications(c *fiber.Ctx) error {
	notifications, err := s.notifications.ListByUser(c.UserContext(), actorID(c), config.NotificationPageSize)
	if err != nil {
		return mapError(c, err)
	}
	unread, err := s.notifications.CountUnread(c.UserContext(), actorID(c))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"notifications": notifications, "unread": unread})
}

func (s *Server) markNotificationRead(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification id"})
	}

	if err := s.notifications.MarkRead(c.UserContext(), actorID(c), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
		return mapError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listAuditTrail(c *fiber.Ctx) error {
	events, err := s.audit.ListByProfile(c.UserContext(), actorID(c), config.AuditPageSize)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}
