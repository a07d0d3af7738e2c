package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tendant/clip-bridge/pkg/pipeline"
)

// Client is an HTTP client for delivering webhooks to a running bridge
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// New creates a new bridge client
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithHTTPClient creates a new bridge client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// WithSecret sets the shared secret sent in the X-Webhook-Secret header
func (c *Client) WithSecret(secret string) *Client {
	c.secret = secret
	return c
}

// Notify sends a single event announcing paths as added
func (c *Client) Notify(ctx context.Context, paths ...string) (*pipeline.WebhookResponse, error) {
	body, err := json.Marshal([]pipeline.WebhookEvent{pipeline.NewFileEvent(paths...)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return c.Send(ctx, body)
}

// Send posts a raw webhook body to /webhook
func (c *Client) Send(ctx context.Context, body []byte) (*pipeline.WebhookResponse, error) {
	url := fmt.Sprintf("%s/webhook", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		httpReq.Header.Set("X-Webhook-Secret", c.secret)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var webhookResp pipeline.WebhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&webhookResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &webhookResp, nil
}
