package models

import (
	"time"

	"gorm.io/datatypes"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Conversation struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;type:text;index:idx_conversations_user_created,priority:1" json:"user_id"`
	Title     string    `gorm:"column:title;type:text" json:"title"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_conversations_user_created,priority:2" json:"created_at"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationSummary is the list projection shown in the conversation picker.
type ConversationSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Message struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string         `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`
	UserID         string         `gorm:"column:user_id;type:text;index" json:"user_id"`
	Role           Role           `gorm:"column:role;type:text" json:"role"`
	Content        string         `gorm:"column:content;type:text" json:"content"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// MessageMeta records which backend produced an assistant message.
type MessageMeta struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}
