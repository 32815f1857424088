package domain

import (
	"strings"
	"time"
)

// User statuses
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeFile  = "file"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeSound = "sound"
)

// Message statuses
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// ChatUser is the chat-domain user record, created lazily on first
// contact. Status is mutated only by the presence service.
type ChatUser struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID  string    `gorm:"type:varchar(36);index;uniqueIndex:idx_user_email,priority:1" json:"tenant_id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex:idx_user_email,priority:2" json:"email"`
	FirstName string    `gorm:"type:varchar(100)" json:"first_name"`
	LastName  string    `gorm:"type:varchar(100)" json:"last_name"`
	AvatarURL string    `gorm:"type:varchar(512)" json:"avatar_url,omitempty"`
	Status    string    `gorm:"type:varchar(10);default:offline" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChatUser) TableName() string { return "chat_users" }

// Conversation is the unique row for an unordered user pair within a
// tenant. UserIDLow/UserIDHigh are canonically ordered so the pair
// {A,B} addresses the same row regardless of which side initiated.
type Conversation struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID      string     `gorm:"type:varchar(36);uniqueIndex:idx_conv_pair,priority:1" json:"tenant_id"`
	UserIDLow     string     `gorm:"type:varchar(36);uniqueIndex:idx_conv_pair,priority:2" json:"user_id_low"`
	UserIDHigh    string     `gorm:"type:varchar(36);uniqueIndex:idx_conv_pair,priority:3" json:"user_id_high"`
	LastMessage   string     `gorm:"type:varchar(512)" json:"last_message"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	UserLow  ChatUser `gorm:"foreignKey:UserIDLow;references:ID" json:"-"`
	UserHigh ChatUser `gorm:"foreignKey:UserIDHigh;references:ID" json:"-"`
}

func (Conversation) TableName() string { return "conversations" }

// HasParticipant reports whether userID is one of the two stored
// participants. Callers must check this before returning any data.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.UserIDLow == userID || c.UserIDHigh == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.UserIDLow == userID {
		return c.UserIDHigh
	}
	return c.UserIDLow
}

// CanonicalPair orders two user ids into the (low, high) slots using a
// stable lexicographic ordering.
func CanonicalPair(a, b string) (low, high string) {
	if strings.Compare(a, b) <= 0 {
		return a, b
	}
	return b, a
}

// Message belongs to exactly one conversation. Immutable after creation
// except for the monotonic sent -> read transition.
type Message struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string     `gorm:"type:varchar(36);index" json:"conversation_id"`
	SenderID       string     `gorm:"type:varchar(36);index" json:"sender_id"`
	Content        string     `gorm:"type:text" json:"content,omitempty"`
	Type           string     `gorm:"type:varchar(10);default:text" json:"type"`
	Status         string     `gorm:"type:varchar(10);default:sent" json:"status"`
	FileURL        string     `gorm:"type:varchar(512)" json:"file_url,omitempty"`
	FileName       string     `gorm:"type:varchar(255)" json:"file_name,omitempty"`
	FileSize       int64      `json:"file_size,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// Preview is the denormalized text stored on the parent conversation.
func (m *Message) Preview() string {
	if m.Content != "" {
		return m.Content
	}
	if m.FileName != "" {
		return m.FileName
	}
	return m.Type
}

// Profile is the subset of a user exposed alongside conversations.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Status    string `json:"status"`
}

func (u *ChatUser) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
		Status:    u.Status,
	}
}

// ConversationView is what list/find-or-create return: the row, both
// participant profiles and the caller-relative unread count. The unread
// figure is recomputed on every read and never cached.
type ConversationView struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Participants  []Profile  `json:"participants"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int64      `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// UserStatus is a single entry in a presence snapshot.
type UserStatus struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}
