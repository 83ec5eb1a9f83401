package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

const actorLocal = "actor_id"

// IdentityRequired extracts the verified actor id placed on the request by
// the upstream auth proxy. The core never authenticates; an absent header
// means the proxy is misconfigured or the request bypassed it.
func IdentityRequired(header string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID := c.Get(header)
		if actorID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing identity",
			})
		}
		c.Locals(actorLocal, actorID)
		return c.Next()
	}
}

func actorID(c *fiber.Ctx) string {
	id, _ := c.Locals(actorLocal).(string)
	return id
}

// LoggingMiddleware logs HTTP requests in a structured format
func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		statusCode := c.Response().StatusCode()
		logLevel := slog.LevelInfo
		if statusCode >= 400 && statusCode < 500 {
			logLevel = slog.LevelWarn
		} else if statusCode >= 500 {
			logLevel = slog.LevelError
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", statusCode),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		if id := actorID(c); id != "" {
			attrs = append(attrs, slog.String("actor_id", id))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		slog.Log(c.UserContext(), logLevel, "HTTP request", attrs...)
		return err
	}
}
