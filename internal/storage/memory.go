package storage

import (
	"sync"

	"finboard-backend/internal/model"
)

type MemoryStorage struct {
	conversations map[string]*model.Conversation
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		conversations: make(map[string]*model.Conversation),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) CreateConversation(conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversations[conv.ID] = conv
	return nil
}

func (m *MemoryStorage) GetConversation(conversationID string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, exists := m.conversations[conversationID]
	if !exists {
		return nil, ErrConversationNotFound
	}

	return conv, nil
}

func (m *MemoryStorage) UpdateConversation(conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ID]; !exists {
		return ErrConversationNotFound
	}

	m.conversations[conv.ID] = conv
	return nil
}

func (m *MemoryStorage) DeleteConversation(conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conversationID]; !exists {
		return ErrConversationNotFound
	}

	delete(m.conversations, conversationID)
	return nil
}

func (m *MemoryStorage) ListConversations() ([]*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conversations := make([]*model.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		conversations = append(conversations, conv)
	}

	return conversations, nil
}

func (m *MemoryStorage) AppendMessage(conversationID string, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, exists := m.conversations[conversationID]
	if !exists {
		return ErrConversationNotFound
	}

	conv.Messages = append(conv.Messages, *msg)
	conv.UpdatedAt = msg.Timestamp
	return nil
}

func (m *MemoryStorage) GetMessage(conversationID, messageID string) (*model.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, exists := m.conversations[conversationID]
	if !exists {
		return nil, ErrConversationNotFound
	}

	for i := range conv.Messages {
		if conv.Messages[i].ID == messageID {
			msg := conv.Messages[i]
			return &msg, nil
		}
	}

	return nil, ErrMessageNotFound
}

func (m *MemoryStorage) UpdateMessage(conversationID string, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, exists := m.conversations[conversationID]
	if !exists {
		return ErrConversationNotFound
	}

	for i := range conv.Messages {
		if conv.Messages[i].ID == msg.ID {
			conv.Messages[i] = *msg
			return nil
		}
	}

	return ErrMessageNotFound
}

func (m *MemoryStorage) Messages(conversationID string) ([]model.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, exists := m.conversations[conversationID]
	if !exists {
		return nil, ErrConversationNotFound
	}

	messages := make([]model.ChatMessage, len(conv.Messages))
	copy(messages, conv.Messages)

	return messages, nil
}
