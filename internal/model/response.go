package model

import "time"

// ChatResponse is one SSE frame sent back to the dashboard while an
// assistant message streams.
type ChatResponse struct {
	ConversationID string        `json:"conversation_id"`
	MessageID      string        `json:"message_id"`
	Content        string        `json:"content,omitempty"`
	Role           Role          `json:"role"`
	Status         MessageStatus `json:"status"`
	Model          string        `json:"model,omitempty"`
	Timestamp      int64         `json:"timestamp"`
}

type ConversationResponse struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	MessageCount   int       `json:"message_count"`
}
