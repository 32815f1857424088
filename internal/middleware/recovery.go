package middleware

import (
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Recovery turns a handler panic into the standard internal-error
// response instead of tearing down the connection.
func Recovery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				evt := log.Error().
					Interface("panic", r).
					Str("method", c.Method()).
					Str("path", c.OriginalURL()).
					Bytes("stack", debug.Stack())
				if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
					evt = evt.Str("user_id", userID)
				}
				evt.Msg("panic recovered")
				c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "internal server error",
				})
			}
		}()
		return c.Next()
	}
}
