package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opendesk/chat-core/internal/domain"
	"github.com/opendesk/chat-core/internal/metrics"
	"github.com/opendesk/chat-core/internal/repository"
)

// EventPublisher is the kafka-backed message event stream.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// Broadcaster fans a payload out to the sockets joined to a
// conversation room on this process.
type Broadcaster interface {
	BroadcastToConversation(conversationID string, payload any)
}

// SendInput is the POST body for appending a message.
type SendInput struct {
	Content  string `json:"content"`
	Type     string `json:"type"`
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type MessageService struct {
	messages  repository.MessageRepository
	convs     *ConversationService
	resolver  *Resolver
	publisher EventPublisher
	hub       Broadcaster
	nodeID    string
}

func NewMessageService(messages repository.MessageRepository, convs *ConversationService, resolver *Resolver, publisher EventPublisher, hub Broadcaster, nodeID string) *MessageService {
	return &MessageService{
		messages:  messages,
		convs:     convs,
		resolver:  resolver,
		publisher: publisher,
		hub:       hub,
		nodeID:    nodeID,
	}
}

var validMessageTypes = map[string]bool{
	domain.MessageTypeText:  true,
	domain.MessageTypeFile:  true,
	domain.MessageTypeImage: true,
	domain.MessageTypeVideo: true,
	domain.MessageTypeSound: true,
}

// Send appends a message to an existing conversation. Sending never
// creates a conversation; an unknown id is ErrNotFound.
func (s *MessageService) Send(ctx context.Context, tenantID, conversationID, callerID string, in SendInput) (*domain.Message, error) {
	if in.Type == "" {
		in.Type = domain.MessageTypeText
	}
	if !validMessageTypes[in.Type] {
		return nil, fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, in.Type)
	}
	if in.Content == "" && in.FileURL == "" {
		return nil, fmt.Errorf("%w: content or file_url required", domain.ErrValidation)
	}

	caller, err := s.resolver.Resolve(ctx, tenantID, callerID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convs.Get(ctx, tenantID, conversationID, caller.UserID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       caller.UserID,
		Content:        in.Content,
		Type:           in.Type,
		Status:         domain.MessageStatusSent,
		FileURL:        in.FileURL,
		FileName:       in.FileName,
		FileSize:       in.FileSize,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: message append: %v", domain.ErrDependencyUnavailable, err)
	}
	metrics.MessagesSent.Inc()

	// Invalidation happens-before the caller sees success.
	s.convs.InvalidateFor(ctx, conv)

	// Fan-out is best effort and does not block the response.
	event := domain.MessageEvent{
		NodeID:         s.nodeID,
		TenantID:       tenantID,
		ConversationID: conv.ID,
		Message:        msg,
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, conv.ID, event); err != nil {
			log.Error().Err(err).Str("conversation_id", conv.ID).Msg("message event publish failed")
		}
	}
	if s.hub != nil {
		s.hub.BroadcastToConversation(conv.ID, domain.Envelope{
			Event: domain.EventMessageNew,
			Data:  event,
		})
	}

	return msg, nil
}

// ListMessages returns up to limit messages in creation order and, as a
// side effect, marks every message not sent by the caller as read.
func (s *MessageService) ListMessages(ctx context.Context, tenantID, conversationID, callerID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	caller, err := s.resolver.Resolve(ctx, tenantID, callerID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convs.Get(ctx, tenantID, conversationID, caller.UserID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.List(ctx, conv.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: message list: %v", domain.ErrDependencyUnavailable, err)
	}

	marked, err := s.markRead(ctx, conv, caller.UserID)
	if err != nil {
		return nil, err
	}
	if marked > 0 {
		// Reflect the transition in the returned slice; the rows are
		// already committed.
		now := time.Now().UTC()
		for i := range msgs {
			if msgs[i].SenderID != caller.UserID && msgs[i].ReadAt == nil {
				msgs[i].Status = domain.MessageStatusRead
				msgs[i].ReadAt = &now
			}
		}
	}

	return msgs, nil
}

// MarkRead is the explicit mark-as-read entry point. Idempotent: a
// second call with no new messages affects zero rows.
func (s *MessageService) MarkRead(ctx context.Context, tenantID, conversationID, callerID string) (int64, error) {
	caller, err := s.resolver.Resolve(ctx, tenantID, callerID)
	if err != nil {
		return 0, err
	}
	conv, err := s.convs.Get(ctx, tenantID, conversationID, caller.UserID)
	if err != nil {
		return 0, err
	}
	return s.markRead(ctx, conv, caller.UserID)
}

func (s *MessageService) markRead(ctx context.Context, conv *domain.Conversation, callerID string) (int64, error) {
	marked, err := s.messages.MarkRead(ctx, conv.ID, callerID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: mark read: %v", domain.ErrDependencyUnavailable, err)
	}
	if marked > 0 {
		s.convs.InvalidateFor(ctx, conv)
	}
	return marked, nil
}
