package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mkarlovic/tradepost/tradepost/commerce"
	"github.com/mkarlovic/tradepost/tradepost/config"
	"github.com/mkarlovic/tradepost/tradepost/database/repositories"
)

// Server is the thin request layer over the commerce engines. Handlers are
// pass-through: every rule lives in the engines, every response here is a
// translation of their results.
type Server struct {
	app           *fiber.App
	orders        *commerce.OrderEngine
	escrow        *commerce.EscrowLedger
	barter        *commerce.BarterEngine
	notifications repositories.NotificationRepository
	audit         repositories.AuditRepository
}

type Config struct {
	IdentityHeader string
}

func New(cfg Config, orders *commerce.OrderEngine, escrow *commerce.EscrowLedger, barter *commerce.BarterEngine,
	notifications repositories.NotificationRepository, audit repositories.AuditRepository) *Server {

	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = "X-Actor-ID"
	}

	app := fiber.New(fiber.Config{
		AppName:      "Tradepost API",
		ServerHeader: "Tradepost",
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(LoggingMiddleware())

	s := &Server{
		app:           app,
		orders:        orders,
		escrow:        escrow,
		barter:        barter,
		notifications: notifications,
		audit:         audit,
	}

	api := app.Group("/api", IdentityRequired(cfg.IdentityHeader))

	api.Post("/orders", s.createOrder)
	api.Get("/orders", s.listOrders)
	api.Get("/orders/:id/audit", s.orderAuditTrail)
	api.Post("/orders/:id/confirm", s.confirmReceipt)
	api.Post("/orders/:id/cancel", s.cancelOrder)
	api.Post("/orders/:id/ship", s.shipOrder)
	api.Post("/orders/:id/out-for-delivery", s.markOutForDelivery)
	api.Post("/orders/:id/release-escrow", s.releaseEscrow)

	api.Post("/barters", s.createBarter)
	api.Get("/barters", s.listBarters)
	api.Post("/barters/:id/respond", s.respondBarter)

	api.Get("/notifications", s.listNotifications)
	api.Post("/notifications/:id/read", s.markNotificationRead)

	api.Get("/audit", s.listAuditTrail)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	return s
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(config.ShutdownGracePeriod)
}
