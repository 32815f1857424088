package domain

import "time"

// Socket and pub/sub event names.
const (
	EventUserStatusUpdate   = "user:status:update"
	EventUsersOnline        = "users:online"
	EventUsersOnlineRequest = "users:online:request"
	EventMessageNew         = "message:new"
	EventJoin               = "join"
	EventLeave              = "leave"
	EventPing               = "ping"
	EventPong               = "pong"
)

// StatusEvent is published on the tenant pub/sub channel whenever a
// user's presence changes, and re-emitted by every process to its own
// locally connected sockets.
type StatusEvent struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageEvent is the kafka payload fanned out after a successful
// append so every process can broadcast to its conversation room.
type MessageEvent struct {
	NodeID         string   `json:"node_id"`
	TenantID       string   `json:"tenant_id"`
	ConversationID string   `json:"conversation_id"`
	Message        *Message `json:"message"`
}

// Envelope is the framing for every socket message in both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
