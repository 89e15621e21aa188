package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Paid provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// PaidClient dispatches to a paid API provider: Anthropic or OpenAI.
type PaidClient struct {
	provider  string
	model     string
	openai    *openai.Client
	anthropic *anthropicClient
}

// NewPaid builds a paid API client for the given provider.
func NewPaid(provider, model, anthropicKey, openaiKey string) (*PaidClient, error) {
	c := &PaidClient{provider: provider, model: model}
	switch provider {
	case ProviderAnthropic:
		c.anthropic = newAnthropicClient(anthropicKey)
	case ProviderOpenAI:
		c.openai = openai.NewClient(openaiKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", provider)
	}
	return c, nil
}

// Chat sends a chat request to the configured paid API.
func (c *PaidClient) Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	switch c.provider {
	case ProviderAnthropic:
		return c.anthropic.chat(ctx, c.model, messages, tools)
	default:
		return chatCompletion(ctx, c.openai, ProviderOpenAI, c.model, messages, tools)
	}
}
