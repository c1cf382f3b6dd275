package model

import "time"

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus is the lifecycle state of a message. User messages are
// complete from creation; assistant messages start streaming and end in
// complete or error.
type MessageStatus string

const (
	StatusStreaming MessageStatus = "streaming"
	StatusComplete  MessageStatus = "complete"
	StatusError     MessageStatus = "error"
)

// Feedback is the user's thumbs rating on a completed assistant message.
type Feedback string

const (
	FeedbackNone     Feedback = ""
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// ChatMessage is one turn of a conversation. Content is append-only while
// Status is streaming and immutable afterwards, except Feedback which may be
// toggled any time after completion.
type ChatMessage struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Role           Role          `json:"role"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	Context        *ChatContext  `json:"context,omitempty"`
	Model          string        `json:"model,omitempty"`
	Feedback       Feedback      `json:"feedback,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Streaming reports whether the message still accepts chunks.
func (m *ChatMessage) Streaming() bool {
	return m.Status == StatusStreaming
}

// Conversation is an ordered list of exchanged messages.
type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
