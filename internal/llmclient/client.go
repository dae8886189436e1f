// Package llmclient wraps github.com/sashabaranov/go-openai behind the two
// narrow interfaces the rest of the system needs: a chat Completer and an
// embedding provider. Both the classifier cascade (Layer 3) and the
// character/RAG/direct handlers depend on these, never on the openai
// package directly.
package llmclient

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Config configures both the chat and embedding clients. A single provider
// (deepseek/openai/siliconflow) serves both concerns, matching the
// teacher's one-profile-per-deployment shape.
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
	MaxTokens      int
	Temperature    float32
	TimeoutSeconds int
}

// Message is a single chat turn.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// CallStats carries token usage and timing for one LLM call, consumed by
// the orchestrator's per-turn metrics assembly.
type CallStats struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CacheReadTokens  int
	TotalDurationMs  int64
}

// Client is the chat-completion half of the LLM surface.
type Client struct {
	openai      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func providerBaseURL(provider, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	switch provider {
	case "deepseek":
		return "https://api.deepseek.com", nil
	case "siliconflow":
		return "https://api.siliconflow.cn/v1", nil
	case "openai":
		return "", nil // openai client defaults correctly with an empty BaseURL
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// NewClient builds the chat client for the configured provider.
func NewClient(cfg Config) (*Client, error) {
	baseURL, err := providerBaseURL(cfg.Provider, cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	timeout := 120 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &Client{
		openai:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.ChatModel,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}

// Chat performs one synchronous chat completion, bounded by the client's
// configured timeout. On timeout or transport failure it returns an error;
// callers (classifier Layer 3, handlers) treat that as a classification or
// generation failure, never as a fatal orchestrator error.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, *CallStats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    convertMessages(messages),
	}

	slog.Debug("llmclient: chat starting", "model", c.model, "messages", len(messages))
	resp, err := c.openai.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("llmclient: chat failed", "error", err)
		return "", nil, fmt.Errorf("llm chat failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("llm chat: empty response")
	}

	stats := &CallStats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		TotalDurationMs:  time.Since(start).Milliseconds(),
	}
	if resp.Usage.PromptTokensDetails != nil {
		stats.CacheReadTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}

	return resp.Choices[0].Message.Content, stats, nil
}

// Complete satisfies internal/ruleengine.Completer and internal/classify's
// narrow LLM-layer dependency: a single user-turn completion with no system
// prompt bookkeeping beyond what the caller already built into the prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	content, _, err := c.Chat(ctx, []Message{{Role: "user", Content: prompt}})
	return content, err
}
