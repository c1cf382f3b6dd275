package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"finboard-backend/internal/model"
	"finboard-backend/pkg/logger"
)

// DiskStorage keeps every conversation as one JSON file under dataDir,
// loaded into memory on Init. Writes go through to disk; reads are served
// from the in-memory map.
type DiskStorage struct {
	dataDir string
	mu      sync.RWMutex
	cache   map[string]*model.Conversation
}

func NewDiskStorage(dataDir string) *DiskStorage {
	return &DiskStorage{
		dataDir: dataDir,
		cache:   make(map[string]*model.Conversation),
	}
}

func (d *DiskStorage) Init() error {
	if err := os.MkdirAll(filepath.Join(d.dataDir, "conversations"), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadConversations(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("disk storage initialized with %d conversations", len(d.cache))
	return nil
}

func (d *DiskStorage) Close() error {
	return nil
}

func (d *DiskStorage) loadConversations() error {
	entries, err := os.ReadDir(filepath.Join(d.dataDir, "conversations"))
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.dataDir, "conversations", entry.Name()))
		if err != nil {
			logger.Warnf("skipping unreadable conversation file %s: %v", entry.Name(), err)
			continue
		}
		var conv model.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			logger.Warnf("skipping corrupt conversation file %s: %v", entry.Name(), err)
			continue
		}
		d.cache[conv.ID] = &conv
	}

	return nil
}

func (d *DiskStorage) conversationPath(conversationID string) string {
	return filepath.Join(d.dataDir, "conversations", conversationID+".json")
}

// persist writes a conversation to disk. Caller must hold the lock.
func (d *DiskStorage) persist(conv *model.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}

	tmp := d.conversationPath(conv.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.conversationPath(conv.ID))
}

func (d *DiskStorage) CreateConversation(conv *model.Conversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache[conv.ID] = conv
	return d.persist(conv)
}

func (d *DiskStorage) GetConversation(conversationID string) (*model.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conv, exists := d.cache[conversationID]
	if !exists {
		return nil, ErrConversationNotFound
	}

	return conv, nil
}

func (d *DiskStorage) UpdateConversation(conv *model.Conversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.cache[conv.ID]; !exists {
		return ErrConversationNotFound
	}

	d.cache[conv.ID] = conv
	return d.persist(conv)
}

func (d *DiskStorage) DeleteConversation(conversationID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.cache[conversationID]; !exists {
		return ErrConversationNotFound
	}

	delete(d.cache, conversationID)
	if err := os.Remove(d.conversationPath(conversationID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *DiskStorage) ListConversations() ([]*model.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conversations := make([]*model.Conversation, 0, len(d.cache))
	for _, conv := range d.cache {
		conversations = append(conversations, conv)
	}

	return conversations, nil
}

func (d *DiskStorage) AppendMessage(conversationID string, msg *model.ChatMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	conv, exists := d.cache[conversationID]
	if !exists {
		return ErrConversationNotFound
	}

	conv.Messages = append(conv.Messages, *msg)
	conv.UpdatedAt = msg.Timestamp
	return d.persist(conv)
}

func (d *DiskStorage) GetMessage(conversationID, messageID string) (*model.ChatMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conv, exists := d.cache[conversationID]
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

func (d *DiskStorage) UpdateMessage(conversationID string, msg *model.ChatMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	conv, exists := d.cache[conversationID]
	if !exists {
		return ErrConversationNotFound
	}

	for i := range conv.Messages {
		if conv.Messages[i].ID == msg.ID {
			conv.Messages[i] = *msg
			if msg.Status == model.StatusStreaming {
				// Chunk-by-chunk updates stay in memory; the
				// conversation is flushed when the message finalizes.
				return nil
			}
			return d.persist(conv)
		}
	}

	return ErrMessageNotFound
}

func (d *DiskStorage) Messages(conversationID string) ([]model.ChatMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conv, exists := d.cache[conversationID]
	if !exists {
		return nil, ErrConversationNotFound
	}

	messages := make([]model.ChatMessage, len(conv.Messages))
	copy(messages, conv.Messages)

	return messages, nil
}
