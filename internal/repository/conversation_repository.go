package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/opendesk/chat-core/internal/domain"
)

type ConversationRepository interface {
	GetByPair(ctx context.Context, tenantID, low, high string) (*domain.Conversation, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error)
	Create(ctx context.Context, c *domain.Conversation) error
	ListForUser(ctx context.Context, tenantID, userID string) ([]domain.Conversation, error)
	UnreadCount(ctx context.Context, conversationID, callerID string) (int64, error)
}

type mysqlConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &mysqlConversationRepository{db: db}
}

func (r *mysqlConversationRepository) GetByPair(ctx context.Context, tenantID, low, high string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("UserLow").
		Preload("UserHigh").
		Where("tenant_id = ? AND user_id_low = ? AND user_id_high = ?", tenantID, low, high).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mysqlConversationRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("UserLow").
		Preload("UserHigh").
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mysqlConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// ListForUser returns every conversation where userID is a participant,
// most recent activity first. Rows with no messages yet sort last.
func (r *mysqlConversationRepository) ListForUser(ctx context.Context, tenantID, userID string) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("UserLow").
		Preload("UserHigh").
		Where("tenant_id = ? AND (user_id_low = ? OR user_id_high = ?)", tenantID, userID, userID).
		Order("last_message_at IS NULL, last_message_at DESC").
		Find(&convs).Error
	return convs, err
}

// UnreadCount is the caller-relative aggregate. It is always computed
// live against the store, never cached.
func (r *mysqlConversationRepository) UnreadCount(ctx context.Context, conversationID, callerID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, callerID).
		Count(&n).Error
	return n, err
}
