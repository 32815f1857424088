package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/opendesk/chat-core/internal/domain"
)

// respondError maps the domain error taxonomy onto HTTP statuses.
// ErrNotFound covers both missing rows and non-participants, so a
// caller can never probe for a conversation they are not part of.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	case errors.Is(err, domain.ErrDependencyUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}

func callerFrom(c *fiber.Ctx) (userID, tenantID string) {
	userID, _ = c.Locals("user_id").(string)
	tenantID, _ = c.Locals("tenant_id").(string)
	return userID, tenantID
}
