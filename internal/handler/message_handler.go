package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opendesk/chat-core/internal/service"
)

type MessageHandler struct {
	messages *service.MessageService
}

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send appends a message to an existing conversation.
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var in service.SendInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	userID, tenantID := callerFrom(c)
	msg, err := h.messages.Send(c.UserContext(), tenantID, c.Params("id"), userID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg})
}

// List returns messages in creation order and marks the caller's
// unread messages as read.
func (h *MessageHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	userID, tenantID := callerFrom(c)

	msgs, err := h.messages.ListMessages(c.UserContext(), tenantID, c.Params("id"), userID, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// MarkRead is the explicit mark-as-read endpoint.
func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID, tenantID := callerFrom(c)

	marked, err := h.messages.MarkRead(c.UserContext(), tenantID, c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"marked": marked})
}
