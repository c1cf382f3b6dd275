package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finboard-backend/internal/model"
	"finboard-backend/internal/storage"
	"finboard-backend/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrNoPrecedingUser is returned by Regenerate when the target has no
	// user message before it; the caller treats this as a no-op.
	ErrNoPrecedingUser = errors.New("no preceding user message")

	// ErrStreamInFlight guards against two decoders racing writes to the
	// same message.
	ErrStreamInFlight = errors.New("message is still streaming")
)

// streamErrorContent is shown inline as the assistant's message content on
// stream failure, so the conversation stays a readable transcript.
const streamErrorContent = "Sorry, something went wrong while generating this response. Please try again."

// ConversationStore owns the ordered message list and each message's
// lifecycle state. All message mutation goes through its operations; the
// decoder and controller never write fields directly.
type ConversationStore struct {
	storage       storage.Storage
	historyWindow int
	mu            sync.Mutex
}

func NewConversationStore(store storage.Storage, historyWindow int) *ConversationStore {
	return &ConversationStore{
		storage:       store,
		historyWindow: historyWindow,
	}
}

func (s *ConversationStore) CreateConversation(title string) (*model.Conversation, error) {
	if title == "" {
		title = "New chat " + time.Now().Format("2006-01-02 15:04")
	}

	conv := &model.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		Messages:  make([]model.ChatMessage, 0),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.storage.CreateConversation(conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

func (s *ConversationStore) GetConversation(conversationID string) (*model.Conversation, error) {
	conv, err := s.storage.GetConversation(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", conversationID, err)
	}
	return conv, nil
}

func (s *ConversationStore) ListConversations() ([]*model.Conversation, error) {
	return s.storage.ListConversations()
}

func (s *ConversationStore) DeleteConversation(conversationID string) error {
	return s.storage.DeleteConversation(conversationID)
}

func (s *ConversationStore) Messages(conversationID string) ([]model.ChatMessage, error) {
	return s.storage.Messages(conversationID)
}

// RunCleanup deletes conversations idle beyond ttl, checking every
// interval, until ctx is cancelled.
func (s *ConversationStore) RunCleanup(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conversations, err := s.storage.ListConversations()
			if err != nil {
				logger.Errorf("cleanup: failed to list conversations: %v", err)
				continue
			}

			cutoff := time.Now().Add(-ttl)
			for _, conv := range conversations {
				if conv.UpdatedAt.Before(cutoff) {
					if err := s.storage.DeleteConversation(conv.ID); err != nil {
						logger.Errorf("cleanup: failed to delete conversation %s: %v", conv.ID, err)
					} else {
						logger.Infof("cleanup: removed idle conversation %s", conv.ID)
					}
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Send appends the user's turn (complete immediately; user messages are
// never streamed) and a paired assistant placeholder in streaming state
// carrying a snapshot of the merged context. It returns the placeholder and
// the bounded history to send upstream, whose final entry is the new user
// text.
func (s *ConversationStore) Send(conversationID, text string, merged model.ChatContext) (*model.ChatMessage, []model.AssistantMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, err := s.storage.Messages(conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}

	now := time.Now()
	userMsg := &model.ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        text,
		Status:         model.StatusComplete,
		Timestamp:      now,
	}
	if err := s.storage.AppendMessage(conversationID, userMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to append user message: %w", err)
	}

	snapshot := merged.Clone()
	assistantMsg := &model.ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Status:         model.StatusStreaming,
		Context:        &snapshot,
		Timestamp:      now,
	}
	if err := s.storage.AppendMessage(conversationID, assistantMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to append assistant placeholder: %w", err)
	}

	history := s.historyFrom(prior)
	history = append(history, model.AssistantMessage{Role: string(model.RoleUser), Content: text})

	return assistantMsg, history, nil
}

// historyFrom converts prior messages into the bounded upstream window:
// the last historyWindow completed turns, oldest first. Failed and
// still-streaming turns are skipped.
func (s *ConversationStore) historyFrom(prior []model.ChatMessage) []model.AssistantMessage {
	history := make([]model.AssistantMessage, 0, s.historyWindow+1)
	for _, msg := range prior {
		if msg.Status != model.StatusComplete {
			continue
		}
		history = append(history, model.AssistantMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	if len(history) > s.historyWindow {
		history = history[len(history)-s.historyWindow:]
	}
	return history
}

// AppendChunk concatenates streamed text onto a message. It is a no-op
// when the message is no longer streaming, tolerating late chunks that
// arrive after cancellation.
func (s *ConversationStore) AppendChunk(conversationID, messageID, chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.storage.GetMessage(conversationID, messageID)
	if err != nil {
		return err
	}
	if !msg.Streaming() {
		return nil
	}

	msg.Content += chunk
	return s.storage.UpdateMessage(conversationID, msg)
}

// SetModel attaches model identity from a metadata event. Content is
// unaffected.
func (s *ConversationStore) SetModel(conversationID, messageID, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.storage.GetMessage(conversationID, messageID)
	if err != nil {
		return err
	}
	if !msg.Streaming() {
		return nil
	}

	msg.Model = modelName
	return s.storage.UpdateMessage(conversationID, msg)
}

// Complete transitions streaming → complete. A message that already
// finalized stays as it is.
func (s *ConversationStore) Complete(conversationID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.storage.GetMessage(conversationID, messageID)
	if err != nil {
		return err
	}
	if !msg.Streaming() {
		return nil
	}

	msg.Status = model.StatusComplete
	return s.storage.UpdateMessage(conversationID, msg)
}

// Fail transitions streaming → error and replaces the content with a
// user-facing error string; errors are rendered inline as message content,
// not through a side channel.
func (s *ConversationStore) Fail(conversationID, messageID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.storage.GetMessage(conversationID, messageID)
	if err != nil {
		return err
	}
	if !msg.Streaming() {
		return nil
	}

	logger.Warnf("message %s failed: %s", messageID, reason)

	msg.Status = model.StatusError
	msg.Content = streamErrorContent
	return s.storage.UpdateMessage(conversationID, msg)
}

// SetFeedback toggles feedback on a finalized message. Setting the same
// value twice clears it.
func (s *ConversationStore) SetFeedback(conversationID, messageID string, value model.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.storage.GetMessage(conversationID, messageID)
	if err != nil {
		return err
	}
	if msg.Streaming() {
		return ErrStreamInFlight
	}

	if msg.Feedback == value {
		msg.Feedback = model.FeedbackNone
	} else {
		msg.Feedback = value
	}
	return s.storage.UpdateMessage(conversationID, msg)
}

// Regenerate resets an assistant message for a fresh streaming cycle under
// the same identity and returns the history truncated before the original
// pair, ending with the replayed user turn. ErrStreamInFlight if the
// message has not finalized; ErrNoPrecedingUser when there is no user turn
// before it (callers no-op on that).
func (s *ConversationStore) Regenerate(conversationID, messageID string) (*model.ChatMessage, []model.AssistantMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.storage.Messages(conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}

	idx := -1
	for i := range messages {
		if messages[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, storage.ErrMessageNotFound
	}
	if messages[idx].Streaming() {
		return nil, nil, ErrStreamInFlight
	}

	userIdx := -1
	for i := idx - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			userIdx = i
			break
		}
	}
	if userIdx < 0 {
		return nil, nil, ErrNoPrecedingUser
	}

	msg := messages[idx]
	msg.Content = ""
	msg.Model = ""
	msg.Feedback = model.FeedbackNone
	msg.Status = model.StatusStreaming
	if err := s.storage.UpdateMessage(conversationID, &msg); err != nil {
		return nil, nil, err
	}

	history := s.historyFrom(messages[:userIdx])
	history = append(history, model.AssistantMessage{
		Role:    string(model.RoleUser),
		Content: messages[userIdx].Content,
	})

	return &msg, history, nil
}
