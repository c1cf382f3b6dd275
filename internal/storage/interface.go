package storage

import (
	"finboard-backend/internal/model"
)

// Storage persists conversations and their messages. The conversation store
// service is the only writer of message fields; implementations just hold
// the data.
type Storage interface {
	CreateConversation(conv *model.Conversation) error
	GetConversation(conversationID string) (*model.Conversation, error)
	UpdateConversation(conv *model.Conversation) error
	DeleteConversation(conversationID string) error
	ListConversations() ([]*model.Conversation, error)

	AppendMessage(conversationID string, msg *model.ChatMessage) error
	GetMessage(conversationID, messageID string) (*model.ChatMessage, error)
	UpdateMessage(conversationID string, msg *model.ChatMessage) error
	Messages(conversationID string) ([]model.ChatMessage, error)

	Init() error
	Close() error
}
