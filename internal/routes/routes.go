package routes

import (
	"github.com/gofiber/fiber/v2"

	handlers "github.com/opendesk/chat-core/internal/handler"
	"github.com/opendesk/chat-core/internal/middleware"
	"github.com/opendesk/chat-core/internal/service"
	"github.com/opendesk/chat-core/internal/ws"
)

// Register wires the HTTP surface and the websocket endpoint.
func Register(
	app *fiber.App,
	convs *service.ConversationService,
	messages *service.MessageService,
	presence *service.PresenceService,
	resolver *service.Resolver,
	hub *ws.Hub,
	authMw fiber.Handler,
	jwtSecret string,
) {
	app.Use(middleware.Recovery())
	app.Use(middleware.LoggerMiddleware())

	api := app.Group("/api/v1")

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	conversations := api.Group("/conversations")
	conversations.Use(authMw)
	convHandler := handlers.NewConversationHandler(convs, resolver)
	conversations.Get("/", convHandler.List)
	conversations.Post("/", convHandler.FindOrCreate)

	msgHandler := handlers.NewMessageHandler(messages)
	conversations.Get("/:id/messages", msgHandler.List)
	conversations.Post("/:id/messages", msgHandler.Send)
	conversations.Put("/:id/messages/read", msgHandler.MarkRead)

	presenceGroup := api.Group("/presence")
	presenceGroup.Use(authMw)
	presenceHandler := handlers.NewPresenceHandler(presence)
	presenceGroup.Get("/", presenceHandler.Snapshot)
	presenceGroup.Put("/", presenceHandler.SetStatus)

	app.Get("/ws", ws.NewWebsocketHandler(hub, resolver, jwtSecret))
}
