// Package llm abstracts chat-completion providers behind a single Client
// interface: a local Ollama server as the primary, a paid API (Anthropic or
// OpenAI) as the fallback, and a composite that chains the two.
//
// Tool schemas are carried in OpenAI function-calling shape, which Ollama
// accepts unchanged; the Anthropic adapter converts on the way out.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Message is a single message in a chat conversation.
type Message struct {
	Role    string // "system", "user", "assistant", "tool"
	Content string
}

// ToolSchema describes one tool the model may call. Parameters is a JSON
// Schema object. On the wire this becomes the OpenAI function-calling
// format ({"type":"function","function":{...}}) for OpenAI-compatible
// providers and Anthropic's input_schema form for Anthropic.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a single tool invocation requested by the model.
// Arguments is the raw JSON argument object; callers decode it into
// whatever shape the tool expects.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Response is the structured result of one chat completion.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
	LatencyMS    int64
	Provider     string
	Model        string
}

// Client is the abstract interface for chat completion providers.
type Client interface {
	// Chat sends a conversation plus optional tool schemas and returns
	// the model's reply. Implementations must respect ctx cancellation.
	Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error)
}

// IsAuthError reports whether err looks like a provider auth failure
// (missing or invalid API key). Checked both by typed inspection of the
// OpenAI client error and by sniffing the message text, since the
// Anthropic adapter surfaces plain errors.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 401 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") ||
		strings.Contains(msg, "invalid_api_key") ||
		strings.Contains(msg, "incorrect api key") ||
		strings.Contains(msg, "unauthorized")
}
