package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"finboard-backend/internal/config"
	"finboard-backend/internal/model"
	"finboard-backend/internal/utils"
)

// AssistantClient issues streamed chat requests against the assistant
// backend. The returned body speaks the line-oriented event protocol the
// StreamDecoder understands.
type AssistantClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewAssistantClient(cfg config.AssistantConfig) *AssistantClient {
	return &AssistantClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		// No client timeout: a streamed answer has no bounded duration.
		// Cancellation comes from the request context.
		client: utils.NewHTTPClient(0),
	}
}

// Stream posts the request and returns the response body for decoding.
// The caller owns closing the body.
func (c *AssistantClient) Stream(ctx context.Context, req model.AssistantRequest) (io.ReadCloser, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assistant request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.model != "" {
		httpReq.Header.Set("X-Model", c.model)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("assistant backend rejected request: %s", resp.Status)
	}

	return resp.Body, nil
}
