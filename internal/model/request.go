package model

// ChatRequest is the dashboard's request to start or continue a streamed
// exchange. Context, when present, is the page-driven context for this turn
// and takes precedence over the server-side page context.
type ChatRequest struct {
	Message        string       `json:"message" binding:"required"`
	ConversationID string       `json:"conversation_id"`
	Context        *ChatContext `json:"context"`
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type RegenerateRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
}

type FeedbackRequest struct {
	ConversationID string   `json:"conversation_id" binding:"required"`
	Value          Feedback `json:"value" binding:"required"`
}

// AssistantMessage is the provider-agnostic role/content pair sent upstream.
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AssistantRequest is the outbound request body to the assistant backend.
// Messages is the bounded history window; the final entry is always the new
// or regenerated user turn.
type AssistantRequest struct {
	Messages []AssistantMessage `json:"messages"`
	Context  ChatContext        `json:"context"`
	Stream   bool               `json:"stream"`
}
