package ws

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"

	"github.com/opendesk/chat-core/internal/middleware"
	"github.com/opendesk/chat-core/internal/service"
)

// NewWebsocketHandler upgrades /ws connections. The token rides the
// query string because browsers cannot set headers on websocket dials.
func NewWebsocketHandler(hub *Hub, resolver *service.Resolver, jwtSecret string) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		tokenStr := conn.Query("token")
		if tokenStr == "" {
			conn.Close()
			return
		}

		claims, err := middleware.ParseToken(tokenStr, jwtSecret)
		if err != nil {
			log.Warn().Err(err).Msg("socket auth failed")
			conn.Close()
			return
		}

		// Lazy user sync: the socket user must exist in the chat domain
		// before presence can be persisted for them.
		res, err := resolver.Resolve(context.Background(), claims.TenantID, claims.UserID)
		if err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("socket identity resolution failed")
			conn.Close()
			return
		}

		client := NewClient(res.UserID, claims.TenantID, hub, conn)
		hub.Register(client)

		go client.WritePump()
		client.ReadPump()
	})
}
