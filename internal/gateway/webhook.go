package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nudgeworks/nudge-go/internal/conf"
)

const (
	// defaultWebhookTimeout is used when no timeout is configured.
	defaultWebhookTimeout = 30 * time.Second

	// maxErrorBodySize limits error response body reading.
	maxErrorBodySize = 1024
)

// WebhookGateway posts batched sends as JSON to a push relay endpoint.
// The relay responds with per-recipient failures; HTTP-level failures are
// transport errors and retried.
type WebhookGateway struct {
	endpoint   string
	headers    map[string]string
	client     *http.Client
	maxRetries int
}

// webhookRequest is the JSON body sent to the relay endpoint.
type webhookRequest struct {
	Addresses []string       `json:"addresses"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// webhookResponse is the JSON body expected from the relay endpoint.
// Failed maps a delivery address to the provider-reported error.
type webhookResponse struct {
	Success bool              `json:"success"`
	Failed  map[string]string `json:"failed,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// NewWebhookGateway creates an HTTP webhook gateway from settings.
func NewWebhookGateway(settings *conf.WebhookGatewaySettings, maxRetries int) *WebhookGateway {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookGateway{
		endpoint:   strings.TrimSpace(settings.Endpoint),
		headers:    settings.Headers,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

func (g *WebhookGateway) Name() string { return "webhook" }

// ValidateConfig checks the endpoint URL.
func (g *WebhookGateway) ValidateConfig() error {
	if g.endpoint == "" {
		return fmt.Errorf("webhook endpoint is required")
	}
	parsed, err := url.Parse(g.endpoint)
	if err != nil {
		return fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("webhook endpoint must be http or https, got %q", parsed.Scheme)
	}
	return nil
}

// Send posts the batch to the relay. 5xx responses and network errors are
// retried with backoff; 4xx responses are permanent.
func (g *WebhookGateway) Send(ctx context.Context, addresses []string, title, body string, data map[string]any) (*Result, error) {
	if len(addresses) == 0 {
		return &Result{}, nil
	}

	payload, err := json.Marshal(webhookRequest{
		Addresses: addresses,
		Title:     title,
		Body:      body,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	return withRetries(ctx, g.maxRetries, func() (*Result, error) {
		return g.post(ctx, payload, addresses)
	})
}

func (g *WebhookGateway) post(ctx context.Context, payload []byte, addresses []string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, permanentError(fmt.Errorf("failed to build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range g.headers {
		req.Header.Set(key, value)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, retryableError(fmt.Errorf("webhook request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, retryableError(fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(snippet)))
	case resp.StatusCode >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, permanentError(fmt.Errorf("webhook rejected request with %d: %s", resp.StatusCode, string(snippet)))
	}

	var decoded webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, permanentError(fmt.Errorf("failed to decode webhook response: %w", err))
	}
	if !decoded.Success && decoded.Error != "" {
		return nil, permanentError(fmt.Errorf("webhook reported failure: %s", decoded.Error))
	}

	result := &Result{RecipientErrors: decoded.Failed}
	result.Failed = len(decoded.Failed)
	result.Delivered = len(addresses) - result.Failed
	if result.Delivered < 0 {
		result.Delivered = 0
	}
	return result, nil
}
