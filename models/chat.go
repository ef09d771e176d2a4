package models

import "time"

// MessageRole tells who authored a chat message.
type MessageRole string

const (
	RoleUser MessageRole = "USER"
	RoleAI   MessageRole = "AI"
)

// ChatSession is one conversation thread of a user.
type ChatSession struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	UserID    uint          `json:"user" gorm:"index;not null"`
	Topic     *string       `json:"topic" gorm:"size:255"`
	Messages  []ChatMessage `json:"messages" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time     `json:"created_at"`
}

// TableName keeps the table short and explicit.
func (ChatSession) TableName() string { return "chat_sessions" }

// ChatMessage is append-only; rows are never updated.
type ChatMessage struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	SessionID uint        `json:"-" gorm:"index;not null"`
	Role      MessageRole `json:"role" gorm:"size:10;not null"`
	Content   string      `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName keeps the table short and explicit.
func (ChatMessage) TableName() string { return "chat_messages" }

// ChatSessionDTO is the POST /chat/sessions payload.
type ChatSessionDTO struct {
	Topic  *string `json:"topic"`
	Prompt string  `json:"prompt"`
}

// MessageInput is the POST /chat/sessions/:id/send-message payload.
type MessageInput struct {
	Prompt string `json:"prompt"`
}
