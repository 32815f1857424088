package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opendesk/chat-core/internal/service"
)

type PresenceHandler struct {
	presence *service.PresenceService
}

func NewPresenceHandler(presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Snapshot returns the current status of every tenant member.
func (h *PresenceHandler) Snapshot(c *fiber.Ctx) error {
	_, tenantID := callerFrom(c)

	statuses, err := h.presence.Snapshot(c.UserContext(), tenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": statuses})
}

// SetStatus sets the caller's status. This is how "away" happens; the
// socket lifecycle only ever produces online and offline.
func (h *PresenceHandler) SetStatus(c *fiber.Ctx) error {
	type Req struct {
		Status string `json:"status"`
	}

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	userID, tenantID := callerFrom(c)
	if err := h.presence.SetStatus(c.UserContext(), tenantID, userID, req.Status); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": req.Status})
}
