package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerMiddleware logs every request. When the auth middleware has
// run, the authenticated caller is attached so per-tenant traffic can
// be traced.
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var evt *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			evt = log.Error()
		case status >= fiber.StatusBadRequest:
			evt = log.Warn()
		default:
			evt = log.Info()
		}
		if tenantID, ok := c.Locals("tenant_id").(string); ok && tenantID != "" {
			evt = evt.Str("tenant_id", tenantID)
		}
		if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
			evt = evt.Str("user_id", userID)
		}
		evt.
			Str("method", c.Method()).
			Str("path", c.OriginalURL()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request")

		return err
	}
}
