package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"finboard-backend/internal/model"
	"finboard-backend/pkg/logger"
)

// ErrNoActiveStream is returned by Cancel when the message has no decoder
// in flight.
var ErrNoActiveStream = errors.New("no active stream for message")

// AssistantStreamer abstracts the assistant backend for the controller;
// AssistantClient is the production implementation.
type AssistantStreamer interface {
	Stream(ctx context.Context, req model.AssistantRequest) (io.ReadCloser, error)
}

// ChatController drives the send/regenerate lifecycle: it merges context,
// creates the message pair in the store, runs a decoder against the
// assistant stream, and owns the one-cancel-per-in-flight-request registry.
// The registry is keyed by assistant message id, which also enforces the
// one-decoder-per-message rule.
type ChatController struct {
	store      *ConversationStore
	assistant  AssistantStreamer
	aggregator *ContextAggregator

	mu       sync.Mutex
	pageCtx  model.ChatContext
	inflight map[string]context.CancelFunc
}

func NewChatController(store *ConversationStore, assistant AssistantStreamer, aggregator *ContextAggregator) *ChatController {
	return &ChatController{
		store:      store,
		assistant:  assistant,
		aggregator: aggregator,
		pageCtx:    model.ChatContext{Type: model.ContextTypeGeneral},
		inflight:   make(map[string]context.CancelFunc),
	}
}

// SetPageContext installs the page-driven context pushed by the dashboard.
// This is the explicit readiness signal that makes the aggregator's initial
// delay a mitigation rather than a contract.
func (c *ChatController) SetPageContext(pageCtx model.ChatContext) {
	if pageCtx.Type == "" {
		pageCtx.Type = model.ContextTypeGeneral
	}
	c.mu.Lock()
	c.pageCtx = pageCtx.Clone()
	c.mu.Unlock()
}

// CurrentContext returns the merged context that would accompany the next
// turn: the stored page context overlaid with the freshest available
// global snapshot.
func (c *ChatController) CurrentContext(ctx context.Context) model.ChatContext {
	c.mu.Lock()
	page := c.pageCtx.Clone()
	c.mu.Unlock()
	return MergeContext(page, c.aggregator.Snapshot(ctx))
}

// StreamChat runs one full exchange: store the user turn, stream the
// assistant's answer into the paired placeholder, and relay progress on the
// returned channels. pageOverride, when non-nil, replaces the stored page
// context for this turn only.
func (c *ChatController) StreamChat(conversationID, text string, pageOverride *model.ChatContext) (<-chan model.ChatResponse, <-chan error) {
	respChan := make(chan model.ChatResponse, 32)
	errChan := make(chan error, 1)

	go func() {
		defer close(respChan)
		defer close(errChan)

		ctx := context.Background()

		c.mu.Lock()
		page := c.pageCtx.Clone()
		c.mu.Unlock()
		if pageOverride != nil {
			page = pageOverride.Clone()
		}
		merged := MergeContext(page, c.aggregator.Snapshot(ctx))

		assistantMsg, history, err := c.store.Send(conversationID, text, merged)
		if err != nil {
			errChan <- err
			return
		}

		// The message id is freshly minted, so the claim cannot collide
		// with another decoder.
		streamCtx, cancel := context.WithCancel(ctx)
		if err := c.register(assistantMsg.ID, cancel); err != nil {
			cancel()
			if ferr := c.store.Fail(conversationID, assistantMsg.ID, err.Error()); ferr != nil {
				logger.Errorf("failed to finalize message %s: %v", assistantMsg.ID, ferr)
			}
			errChan <- err
			return
		}

		c.runStream(streamCtx, assistantMsg, history, merged, respChan, errChan)
	}()

	return respChan, errChan
}

// Regenerate replays a prior exchange: the target assistant message is
// reset to a new streaming cycle under the same identity and the decoder is
// re-driven with history truncated before the original pair. A message with
// no preceding user turn is left untouched.
//
// The registry slot is claimed before the store resets the message. The
// store's streaming gate and the registry close at different instants (a
// finished decoder finalizes inside Run, its slot is released by a deferred
// unregister), so claiming second could reset a message and then find the
// slot still held, stranding it in streaming with no decoder to finalize it.
func (c *ChatController) Regenerate(conversationID, messageID string) (<-chan model.ChatResponse, <-chan error) {
	respChan := make(chan model.ChatResponse, 32)
	errChan := make(chan error, 1)

	go func() {
		defer close(respChan)
		defer close(errChan)

		ctx := context.Background()

		streamCtx, cancel := context.WithCancel(ctx)
		if err := c.register(messageID, cancel); err != nil {
			cancel()
			errChan <- err
			return
		}

		assistantMsg, history, err := c.store.Regenerate(conversationID, messageID)
		if err != nil {
			c.unregister(messageID)
			if errors.Is(err, ErrNoPrecedingUser) {
				return
			}
			errChan <- err
			return
		}

		// The reset snapshot is what the message claimed it knew; reuse
		// it rather than re-merging live context.
		var merged model.ChatContext
		if assistantMsg.Context != nil {
			merged = *assistantMsg.Context
		} else {
			merged = c.CurrentContext(ctx)
		}

		c.runStream(streamCtx, assistantMsg, history, merged, respChan, errChan)
	}()

	return respChan, errChan
}

// Cancel signals the in-flight decoder for a message to stop. The decoder
// observes the signal at its next chunk boundary and finalizes the message
// as complete.
func (c *ChatController) Cancel(messageID string) error {
	c.mu.Lock()
	cancel, ok := c.inflight[messageID]
	c.mu.Unlock()
	if !ok {
		return ErrNoActiveStream
	}
	cancel()
	return nil
}

// SetFeedback proxies the idempotent feedback toggle.
func (c *ChatController) SetFeedback(conversationID, messageID string, value model.Feedback) error {
	return c.store.SetFeedback(conversationID, messageID, value)
}

// register claims the in-flight slot for a message id. A second decoder
// for the same id is refused until the first finalizes.
func (c *ChatController) register(messageID string, cancel context.CancelFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.inflight[messageID]; exists {
		return ErrStreamInFlight
	}
	c.inflight[messageID] = cancel
	return nil
}

func (c *ChatController) unregister(messageID string) {
	c.mu.Lock()
	if cancel, ok := c.inflight[messageID]; ok {
		cancel()
		delete(c.inflight, messageID)
	}
	c.mu.Unlock()
}

// runStream issues the upstream request and drives the decoder, relaying
// each applied event as a ChatResponse frame. The caller must have claimed
// the registry slot for the message; runStream releases it. On any failure
// the message is finalized before the error is reported.
func (c *ChatController) runStream(streamCtx context.Context, assistantMsg *model.ChatMessage, history []model.AssistantMessage, merged model.ChatContext, respChan chan<- model.ChatResponse, errChan chan<- error) {
	defer c.unregister(assistantMsg.ID)

	body, err := c.assistant.Stream(streamCtx, model.AssistantRequest{
		Messages: history,
		Context:  merged,
		Stream:   true,
	})
	if err != nil {
		if ferr := c.store.Fail(assistantMsg.ConversationID, assistantMsg.ID, err.Error()); ferr != nil {
			logger.Errorf("failed to finalize message %s: %v", assistantMsg.ID, ferr)
		}
		errChan <- err
		return
	}
	defer body.Close()

	decoder := NewStreamDecoder(c.store, assistantMsg.ConversationID, assistantMsg.ID)
	decoder.OnEvent(func(event model.StreamEvent) {
		resp := model.ChatResponse{
			ConversationID: assistantMsg.ConversationID,
			MessageID:      assistantMsg.ID,
			Role:           model.RoleAssistant,
			Timestamp:      time.Now().Unix(),
		}
		switch event.Kind() {
		case model.EventContent:
			resp.Content = event.Content
			resp.Status = model.StatusStreaming
		case model.EventMetadata:
			resp.Model = event.Model
			resp.Status = model.StatusStreaming
		case model.EventError:
			resp.Status = model.StatusError
			resp.Content = streamErrorContent
		default:
			resp.Status = model.StatusComplete
		}
		respChan <- resp
	})

	if err := decoder.Run(streamCtx, body); err != nil {
		errChan <- err
	}
}
