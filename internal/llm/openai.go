package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// LocalClient talks to an Ollama server through its OpenAI-compatible
// endpoint, so tool schemas pass through unchanged.
type LocalClient struct {
	client *openai.Client
	model  string
}

// NewLocal builds a client for the Ollama server at baseURL (the plain
// server URL, e.g. http://localhost:11434).
func NewLocal(baseURL, model string) *LocalClient {
	cfg := openai.DefaultConfig("ollama") // Ollama ignores the key but the client requires one
	cfg.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	return &LocalClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Chat sends a chat request to the local Ollama server.
func (c *LocalClient) Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	return chatCompletion(ctx, c.client, "ollama", c.model, messages, tools)
}

// chatCompletion is the shared OpenAI-protocol request path used by both
// the local and the paid OpenAI client.
func chatCompletion(ctx context.Context, client *openai.Client, provider, model string, messages []Message, tools []ToolSchema) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
		Tools:    toOpenAITools(tools),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s chat completion: empty choices", provider)
	}

	choice := resp.Choices[0]
	out := &Response{
		Content:      choice.Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		LatencyMS:    latency,
		Provider:     provider,
		Model:        model,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// toOpenAITools wraps schemas in the OpenAI function-calling envelope.
func toOpenAITools(tools []ToolSchema) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
