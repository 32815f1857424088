package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/opendesk/chat-core/internal/domain"
	"github.com/opendesk/chat-core/internal/service"
)

type ConversationHandler struct {
	convs    *service.ConversationService
	resolver *service.Resolver
}

func NewConversationHandler(convs *service.ConversationService, resolver *service.Resolver) *ConversationHandler {
	return &ConversationHandler{convs: convs, resolver: resolver}
}

// List returns the caller's conversations, most recent activity first.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	userID, tenantID := callerFrom(c)

	views, err := h.convs.List(c.UserContext(), tenantID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"conversations": views})
}

// FindOrCreate finds or creates the conversation with a target user,
// addressed by id or by email.
func (h *ConversationHandler) FindOrCreate(c *fiber.Ctx) error {
	type Req struct {
		TargetUserID string `json:"target_user_id"`
		TargetEmail  string `json:"target_email"`
	}

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.TargetUserID == "" && req.TargetEmail == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "target_user_id or target_email required"})
	}

	userID, tenantID := callerFrom(c)

	targetID := req.TargetUserID
	if targetID == "" {
		res, err := h.resolver.ResolveByEmail(c.UserContext(), tenantID, req.TargetEmail)
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		if err != nil {
			return respondError(c, err)
		}
		targetID = res.UserID
	}

	view, err := h.convs.FindOrCreate(c.UserContext(), tenantID, userID, targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"conversation": view})
}
