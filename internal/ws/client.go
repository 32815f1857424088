package ws

import (
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"

	"github.com/opendesk/chat-core/internal/domain"
)

// Client represents one connected socket. A user can hold several at
// once (multiple tabs); each is tracked separately by the hub.
type Client struct {
	UserID   string
	TenantID string
	Hub      *Hub
	Conn     *websocket.Conn
	send     chan []byte
}

func NewClient(userID, tenantID string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		UserID:   userID,
		TenantID: tenantID,
		Hub:      hub,
		Conn:     conn,
		send:     make(chan []byte, 256),
	}
}

// enqueue drops the payload if the socket's buffer is full rather than
// stalling the broadcaster.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Warn().Str("user_id", c.UserID).Msg("socket buffer full, dropping frame")
	}
}

type joinPayload struct {
	ConversationID string `json:"conversation_id"`
}

// ReadPump dispatches inbound envelopes until the socket closes, then
// unregisters. Disconnect is the only cancellation signal a socket has.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}

		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Warn().Str("user_id", c.UserID).Msg("undecodable socket frame")
			continue
		}

		switch env.Event {
		case domain.EventJoin:
			c.Hub.JoinConversation(c, decodeJoin(env.Data).ConversationID)
		case domain.EventLeave:
			c.Hub.LeaveConversation(c, decodeJoin(env.Data).ConversationID)
		case domain.EventUsersOnlineRequest:
			c.Hub.sendSnapshot(c)
		case domain.EventPing:
			if data, err := json.Marshal(domain.Envelope{Event: domain.EventPong}); err == nil {
				c.enqueue(data)
			}
		default:
			log.Debug().Str("event", env.Event).Msg("ignoring unknown socket event")
		}
	}
}

// WritePump sends outbound messages to the client
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for msg := range c.send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func decodeJoin(data any) joinPayload {
	var p joinPayload
	raw, err := json.Marshal(data)
	if err != nil {
		return p
	}
	json.Unmarshal(raw, &p)
	return p
}
