package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"moviequery/internal/config"
)

var (
	ErrCompletionDisabled = errors.New("completion API is not enabled (missing API key)")
	ErrRateLimited        = errors.New("completion API rate limit exceeded")
	ErrEmptyCompletion    = errors.New("no choices in completion response")
)

// Completer is a text completion capability
type Completer interface {
	// Complete returns the first choice text for prompt, limited to maxTokens
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// OpenAIClient handles OpenAI-compatible API interactions
type OpenAIClient struct {
	config     *config.OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// IsEnabled returns whether the client is configured and ready
func (c *OpenAIClient) IsEnabled() bool {
	return c.config.Enabled
}

// CompletionRequest represents a legacy text completion request
type CompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResponse represents the text completion API response
type CompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int    `json:"index"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the chat API response
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends prompt to the configured endpoint style and returns the
// trimmed text of the first choice
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !c.config.Enabled {
		return "", ErrCompletionDisabled
	}

	if c.config.APIStyle == "chat" {
		var result ChatCompletionResponse
		err := c.post(ctx, "/chat/completions", ChatCompletionRequest{
			Model:       c.config.Model,
			Messages:    []ChatMessage{{Role: "user", Content: prompt}},
			Temperature: c.config.Temperature,
			MaxTokens:   maxTokens,
		}, &result)
		if err != nil {
			return "", err
		}
		if len(result.Choices) == 0 {
			return "", ErrEmptyCompletion
		}
		return strings.TrimSpace(result.Choices[0].Message.Content), nil
	}

	var result CompletionResponse
	err := c.post(ctx, "/completions", CompletionRequest{
		Model:       c.config.Model,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: c.config.Temperature,
	}, &result)
	if err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(result.Choices[0].Text), nil
}

// post sends a JSON request and decodes a JSON response into out
func (c *OpenAIClient) post(ctx context.Context, path string, payload, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.config.APIBase + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// Ensure OpenAIClient implements Completer
var _ Completer = (*OpenAIClient)(nil)
