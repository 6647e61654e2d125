package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/pkg/httpretry"
	"github.com/mact/ops-server/internal/service/outreach"
)

// Message is one turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces one assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// LLMClient calls an OpenAI-compatible chat-completions endpoint.
type LLMClient struct {
	baseURL    string
	apiKey     string
	model      string
	enabled    bool
	httpClient httpretry.HTTPDoer
}

// NewLLMClient creates a chat-completion client.
func NewLLMClient(cfg config.LLMConfig) *LLMClient {
	return &LLMClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		enabled: cfg.Enabled && cfg.APIKey != "",
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the conversation and returns the assistant's reply text.
func (c *LLMClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("%w: llm", outreach.ErrNotConnected)
	}

	body, err := json.Marshal(completionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: llm status %d", outreach.ErrNotConnected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var out completionResponse
		if json.Unmarshal(data, &out) == nil && out.Error != nil {
			return "", fmt.Errorf("%w: llm status %d: %s", outreach.ErrProvider, resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("%w: llm status %d", outreach.ErrProvider, resp.StatusCode)
	}

	var out completionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: llm returned no choices", outreach.ErrProvider)
	}
	return out.Choices[0].Message.Content, nil
}
