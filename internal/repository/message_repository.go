package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/opendesk/chat-core/internal/domain"
)

type MessageRepository interface {
	Append(ctx context.Context, m *domain.Message) error
	List(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	MarkRead(ctx context.Context, conversationID, callerID string, at time.Time) (int64, error)
}

type mysqlMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &mysqlMessageRepository{db: db}
}

// Append inserts the message and updates the parent conversation's
// lastMessage/lastMessageAt in one transaction, so readers never
// observe one without the other.
func (r *mysqlMessageRepository) Append(ctx context.Context, m *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Conversation{}).
			Where("id = ?", m.ConversationID).
			Updates(map[string]any{
				"last_message":    m.Preview(),
				"last_message_at": m.CreatedAt,
			}).Error
	})
}

func (r *mysqlMessageRepository) List(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// MarkRead flips every unread message not sent by the caller to read.
// The predicate makes re-invocation a no-op.
func (r *mysqlMessageRepository) MarkRead(ctx context.Context, conversationID, callerID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, callerID).
		Updates(map[string]any{
			"status":  domain.MessageStatusRead,
			"read_at": at,
		})
	return res.RowsAffected, res.Error
}
