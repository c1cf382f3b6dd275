package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"finboard-backend/internal/model"

	"github.com/stretchr/testify/require"
)

func testConversation(id string) *model.Conversation {
	now := time.Now()
	return &model.Conversation{
		ID:        id,
		Title:     "disk test",
		Messages:  []model.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestDiskStorageSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store := NewDiskStorage(dir)
	require.NoError(t, store.Init())

	require.NoError(t, store.CreateConversation(testConversation("conv-1")))
	require.NoError(t, store.AppendMessage("conv-1", &model.ChatMessage{
		ID:             "msg-1",
		ConversationID: "conv-1",
		Role:           model.RoleUser,
		Content:        "hello",
		Status:         model.StatusComplete,
		Timestamp:      time.Now(),
	}))
	require.NoError(t, store.Close())

	reopened := NewDiskStorage(dir)
	require.NoError(t, reopened.Init())

	conv, err := reopened.GetConversation("conv-1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, "hello", conv.Messages[0].Content)
}

func TestDiskStorageSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	store := NewDiskStorage(dir)
	require.NoError(t, store.Init())
	require.NoError(t, store.CreateConversation(testConversation("conv-good")))

	corrupt := filepath.Join(dir, "conversations", "conv-bad.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))

	reopened := NewDiskStorage(dir)
	require.NoError(t, reopened.Init())

	list, err := reopened.ListConversations()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "conv-good", list[0].ID)
}

func TestDiskStorageStreamingUpdatesNotFlushed(t *testing.T) {
	dir := t.TempDir()

	store := NewDiskStorage(dir)
	require.NoError(t, store.Init())
	require.NoError(t, store.CreateConversation(testConversation("conv-1")))

	msg := &model.ChatMessage{
		ID:             "msg-1",
		ConversationID: "conv-1",
		Role:           model.RoleAssistant,
		Status:         model.StatusStreaming,
		Timestamp:      time.Now(),
	}
	require.NoError(t, store.AppendMessage("conv-1", msg))

	msg.Content = "partial chunk"
	require.NoError(t, store.UpdateMessage("conv-1", msg))

	// Per-chunk updates stay in memory only.
	onDisk := NewDiskStorage(dir)
	require.NoError(t, onDisk.Init())
	persisted, err := onDisk.GetMessage("conv-1", "msg-1")
	require.NoError(t, err)
	require.Empty(t, persisted.Content)

	// Finalizing the message flushes the accumulated content.
	msg.Status = model.StatusComplete
	require.NoError(t, store.UpdateMessage("conv-1", msg))

	flushed := NewDiskStorage(dir)
	require.NoError(t, flushed.Init())
	persisted, err = flushed.GetMessage("conv-1", "msg-1")
	require.NoError(t, err)
	require.Equal(t, "partial chunk", persisted.Content)
}

func TestDiskStorageDeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()

	store := NewDiskStorage(dir)
	require.NoError(t, store.Init())
	require.NoError(t, store.CreateConversation(testConversation("conv-1")))

	path := filepath.Join(dir, "conversations", "conv-1.json")
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, store.DeleteConversation("conv-1"))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	_, err = store.GetConversation("conv-1")
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMemoryStorageSentinelErrors(t *testing.T) {
	store := NewMemoryStorage()
	require.NoError(t, store.Init())

	_, err := store.GetConversation("missing")
	require.ErrorIs(t, err, ErrConversationNotFound)

	require.NoError(t, store.CreateConversation(testConversation("conv-1")))

	_, err = store.GetMessage("conv-1", "missing")
	require.ErrorIs(t, err, ErrMessageNotFound)

	err = store.UpdateMessage("conv-1", &model.ChatMessage{ID: "missing"})
	require.ErrorIs(t, err, ErrMessageNotFound)

	err = store.DeleteConversation("missing")
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMemoryStorageMessagesReturnsCopy(t *testing.T) {
	store := NewMemoryStorage()
	require.NoError(t, store.Init())
	require.NoError(t, store.CreateConversation(testConversation("conv-1")))
	require.NoError(t, store.AppendMessage("conv-1", &model.ChatMessage{
		ID:        "msg-1",
		Role:      model.RoleUser,
		Content:   "original",
		Status:    model.StatusComplete,
		Timestamp: time.Now(),
	}))

	messages, err := store.Messages("conv-1")
	require.NoError(t, err)
	messages[0].Content = "mutated"

	again, err := store.Messages("conv-1")
	require.NoError(t, err)
	require.Equal(t, "original", again[0].Content)
}
