package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"

	"github.com/opendesk/chat-core/internal/domain"
	"github.com/opendesk/chat-core/internal/service"
)

// Hub owns every socket on this process and the room membership maps.
// Presence truth is local: the per-user connection count decides when
// the user's first socket arrived or last socket left, and the
// presence service turns that into store writes plus pub/sub events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	users   map[string]map[*Client]bool // tenant+user -> live sockets
	tenants map[string]map[*Client]bool // tenant room
	rooms   map[string]map[*Client]bool // conversation room

	presence *service.PresenceService
	convs    *service.ConversationService
	nodeID   string
}

func NewHub(presence *service.PresenceService, convs *service.ConversationService, nodeID string) *Hub {
	return &Hub{
		clients:  make(map[*Client]bool),
		users:    make(map[string]map[*Client]bool),
		tenants:  make(map[string]map[*Client]bool),
		rooms:    make(map[string]map[*Client]bool),
		presence: presence,
		convs:    convs,
		nodeID:   nodeID,
	}
}

// NodeID identifies this process in fanned-out events so consumers can
// skip their own.
func (h *Hub) NodeID() string { return h.nodeID }

func userKey(tenantID, userID string) string { return tenantID + "|" + userID }

// Register joins the socket to its user and tenant rooms. The first
// socket for a user flips presence to online.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	key := userKey(c.TenantID, c.UserID)
	first := len(h.users[key]) == 0
	if h.users[key] == nil {
		h.users[key] = make(map[*Client]bool)
	}
	h.users[key][c] = true
	if h.tenants[c.TenantID] == nil {
		h.tenants[c.TenantID] = make(map[*Client]bool)
	}
	h.tenants[c.TenantID][c] = true
	h.mu.Unlock()

	if first {
		h.presence.HandleConnect(context.Background(), c.TenantID, c.UserID)
	}
	h.sendSnapshot(c)
}

// Unregister drops the socket from every room. Presence flips to
// offline only when no socket for the user remains.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)

	key := userKey(c.TenantID, c.UserID)
	delete(h.users[key], c)
	last := len(h.users[key]) == 0
	if last {
		delete(h.users, key)
	}
	delete(h.tenants[c.TenantID], c)
	for _, members := range h.rooms {
		delete(members, c)
	}
	h.mu.Unlock()

	if last {
		h.presence.HandleDisconnect(context.Background(), c.TenantID, c.UserID)
	}
}

// JoinConversation adds the socket to a conversation room after the
// participant check. Non-participants are silently refused.
func (h *Hub) JoinConversation(c *Client, conversationID string) {
	if conversationID == "" {
		return
	}
	if _, err := h.convs.Get(context.Background(), c.TenantID, conversationID, c.UserID); err != nil {
		log.Warn().
			Str("user_id", c.UserID).
			Str("conversation_id", conversationID).
			Msg("join refused")
		return
	}
	h.mu.Lock()
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*Client]bool)
	}
	h.rooms[conversationID][c] = true
	h.mu.Unlock()
}

func (h *Hub) LeaveConversation(c *Client, conversationID string) {
	h.mu.Lock()
	if members, ok := h.rooms[conversationID]; ok {
		delete(members, c)
	}
	h.mu.Unlock()
}

// BroadcastToConversation fans a payload out to the room's sockets on
// this process.
func (h *Hub) BroadcastToConversation(conversationID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("broadcast marshal failed")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[conversationID] {
		c.enqueue(data)
	}
}

func (h *Hub) BroadcastToTenant(tenantID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("broadcast marshal failed")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.tenants[tenantID] {
		c.enqueue(data)
	}
}

// HandleStatusEvent re-emits a pub/sub presence event to the local
// sockets of the event's tenant. Every process runs this for every
// event, which is what keeps presence coherent across instances.
func (h *Hub) HandleStatusEvent(payload []byte) {
	var event domain.StatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Error().Err(err).Msg("undecodable status event")
		return
	}
	h.BroadcastToTenant(event.TenantID, domain.Envelope{
		Event: domain.EventUserStatusUpdate,
		Data:  event,
	})
}

// HandleMessageEvent re-emits a kafka message event to the local
// conversation room. Events published by this process are skipped; the
// send path already broadcast them.
func (h *Hub) HandleMessageEvent(payload []byte) {
	var event domain.MessageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Error().Err(err).Msg("undecodable message event")
		return
	}
	if event.NodeID == h.nodeID {
		return
	}
	h.BroadcastToConversation(event.ConversationID, domain.Envelope{
		Event: domain.EventMessageNew,
		Data:  event,
	})
}

func (h *Hub) sendSnapshot(c *Client) {
	statuses, err := h.presence.Snapshot(context.Background(), c.TenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", c.TenantID).Msg("presence snapshot failed")
		return
	}
	data, err := json.Marshal(domain.Envelope{
		Event: domain.EventUsersOnline,
		Data:  map[string]any{"users": statuses},
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

// Close disconnects every socket, used during shutdown. Only the
// connections are closed here: each read pump observes its dead
// connection and unregisters itself, and Unregister is the single
// place a send channel is ever closed. Closing channels here would
// race a pump still enqueueing a pong or snapshot.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		if c.Conn != nil {
			conns = append(conns, c.Conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}
