package handler

import (
	"errors"
	"net/http"
	"time"

	"finboard-backend/internal/model"
	"finboard-backend/internal/service"
	"finboard-backend/internal/storage"
	"finboard-backend/internal/utils"
	"finboard-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	store      *service.ConversationStore
	controller *service.ChatController
}

func NewChatHandler(store *service.ConversationStore, controller *service.ChatController) *ChatHandler {
	return &ChatHandler{
		store:      store,
		controller: controller,
	}
}

// StreamChat starts an exchange and relays the assistant's answer to the
// dashboard as SSE frames.
func (h *ChatHandler) StreamChat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ConversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
		return
	}

	respChan, errChan := h.controller.StreamChat(req.ConversationID, req.Message, req.Context)
	h.relay(c, respChan, errChan)
}

// Regenerate replays a prior assistant answer under the same message id.
func (h *ChatHandler) Regenerate(c *gin.Context) {
	messageID := c.Param("message_id")

	var req model.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	respChan, errChan := h.controller.Regenerate(req.ConversationID, messageID)
	h.relay(c, respChan, errChan)
}

// relay drains the controller channels into the SSE connection. On client
// disconnect the in-flight stream is cancelled and the channels drained, so
// the controller goroutine never blocks on a send nobody reads.
func (h *ChatHandler) relay(c *gin.Context, respChan <-chan model.ChatResponse, errChan <-chan error) {
	sseWriter := utils.NewSSEWriter(c.Writer)

	var messageID string
	for {
		select {
		case resp, ok := <-respChan:
			if !ok {
				sseWriter.Close()
				return
			}
			messageID = resp.MessageID
			if err := sseWriter.WriteJSON("message", resp); err != nil {
				logger.Errorf("failed to write SSE frame: %v", err)
				return
			}

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil {
				sseWriter.WriteJSON("error", gin.H{
					"error":     err.Error(),
					"timestamp": time.Now().Unix(),
				})
				sseWriter.Close()
				return
			}

		case <-c.Request.Context().Done():
			h.cancelAndDrain(messageID, respChan)
			return
		}
	}
}

// cancelAndDrain cancels the in-flight stream for a disconnected client and
// consumes the remaining frames. The message id may not be known yet when
// the disconnect arrives (the first frame can still be in flight); the drain
// cancels as soon as a frame reveals it.
func (h *ChatHandler) cancelAndDrain(messageID string, respChan <-chan model.ChatResponse) {
	cancelled := false
	cancel := func(id string) {
		if id == "" || cancelled {
			return
		}
		cancelled = true
		if err := h.controller.Cancel(id); err != nil && !errors.Is(err, service.ErrNoActiveStream) {
			logger.Errorf("failed to cancel stream for message %s: %v", id, err)
		}
	}

	cancel(messageID)
	for resp := range respChan {
		cancel(resp.MessageID)
	}
}

// Cancel aborts the in-flight stream for a message. Cancellation finalizes
// the message as complete; a message with no active stream is reported as
// a conflict.
func (h *ChatHandler) Cancel(c *gin.Context) {
	messageID := c.Param("message_id")

	if err := h.controller.Cancel(messageID); err != nil {
		if errors.Is(err, service.ErrNoActiveStream) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// Feedback toggles the thumbs rating on a finalized message.
func (h *ChatHandler) Feedback(c *gin.Context) {
	messageID := c.Param("message_id")

	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Value != model.FeedbackPositive && req.Value != model.FeedbackNegative {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be positive or negative"})
		return
	}

	if err := h.controller.SetFeedback(req.ConversationID, messageID, req.Value); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, storage.ErrConversationNotFound), errors.Is(err, storage.ErrMessageNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrStreamInFlight):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CurrentContext exposes the merged context that would accompany the next
// turn, for the dashboard's context chip.
func (h *ChatHandler) CurrentContext(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.CurrentContext(c.Request.Context()))
}

// SetPageContext receives the page-driven context from the dashboard on
// navigation. This is the explicit readiness signal for context merging.
func (h *ChatHandler) SetPageContext(c *gin.Context) {
	var pageCtx model.ChatContext
	if err := c.ShouldBindJSON(&pageCtx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.controller.SetPageContext(pageCtx)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req model.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Title = ""
	}

	conv, err := h.store.CreateConversation(req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.store.GetConversation(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.ConversationResponse{
		ConversationID: conv.ID,
		Title:          conv.Title,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
		MessageCount:   len(conv.Messages),
	})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	messages, err := h.store.Messages(conversationID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages":        messages,
	})
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	conversations, err := h.store.ListConversations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]model.ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		resp = append(resp, model.ConversationResponse{
			ConversationID: conv.ID,
			Title:          conv.Title,
			CreatedAt:      conv.CreatedAt,
			UpdatedAt:      conv.UpdatedAt,
			MessageCount:   len(conv.Messages),
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.store.DeleteConversation(c.Param("conversation_id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
