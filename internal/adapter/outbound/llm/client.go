// Package llm provides hydrator adapters that turn agent configuration
// bundles into invokable runtime agents backed by a chat-completion
// provider.
package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/port/outbound"
)

const (
	// DefaultTimeout bounds a single model invocation.
	DefaultTimeout = 60 * time.Second

	// maxResponseBodySize limits provider responses. Prevents OOM from a
	// misbehaving upstream sending unbounded payloads.
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB

	completionsPath = "/v1/chat/completions"
)

// Client hydrates bundles into agents that call an OpenAI-compatible
// chat-completions endpoint. One Client is shared across all agents; the
// underlying connection pool is reused between invocations.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
}

var _ outbound.Hydrator = (*Client)(nil)

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a hydrator for an OpenAI-compatible provider endpoint.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c
}

// Hydrate implements outbound.Hydrator. Absent config rows fall back to
// the documented defaults; the returned agent is ready to run.
func (c *Client) Hydrate(_ context.Context, b *agent.Bundle) (outbound.Runnable, error) {
	if b == nil || b.Agent == nil {
		return nil, fmt.Errorf("hydrate: nil bundle")
	}
	r := &runnableAgent{
		client:      c,
		model:       agent.DefaultModelName,
		temperature: agent.DefaultTemperature,
		system:      composeSystemPrompt(b),
	}
	if b.Model != nil {
		if b.Model.Model != "" {
			r.model = b.Model.Model
		}
		if b.Model.Temperature != 0 {
			r.temperature = b.Model.Temperature
		}
	}
	return r, nil
}

// Close releases idle connections in the shared pool.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// composeSystemPrompt folds the active prompt version and presentation
// settings into one system message.
func composeSystemPrompt(b *agent.Bundle) string {
	var parts []string
	if p := b.ActivePrompt; p != nil {
		if p.SystemMessage != "" {
			parts = append(parts, p.SystemMessage)
		}
		if p.Instructions != "" {
			parts = append(parts, p.Instructions)
		}
	}
	markdown := true
	if b.Ops != nil {
		markdown = b.Ops.Markdown
	}
	if markdown {
		parts = append(parts, "Format responses in markdown.")
	}
	return strings.Join(parts, "\n\n")
}

// runnableAgent is one hydrated agent. It holds resolved configuration
// only; the HTTP plumbing stays on the shared Client.
type runnableAgent struct {
	client      *Client
	model       string
	temperature float64
	system      string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Run implements outbound.Runnable.
func (r *runnableAgent) Run(ctx context.Context, message string) (*outbound.RunOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, r.client.timeout)
	defer cancel()

	msgs := make([]chatMessage, 0, 2)
	if r.system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: r.system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: message})

	body, err := json.Marshal(chatRequest{
		Model:       r.model,
		Messages:    msgs,
		Temperature: r.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.client.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.client.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.client.apiKey)
	}

	resp, err := r.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model provider request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model provider returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal provider response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("model provider returned no choices")
	}

	return &outbound.RunOutput{
		Content: parsed.Choices[0].Message.Content,
		Raw:     raw,
	}, nil
}
