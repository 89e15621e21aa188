package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubClient struct {
	resp *Response
	err  error
}

func (s *stubClient) Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	return s.resp, s.err
}

func TestFallbackClient(t *testing.T) {
	ctx := context.Background()
	msgs := []Message{{Role: "user", Content: "coffee 20"}}

	t.Run("primary success is returned untagged", func(t *testing.T) {
		primary := &stubClient{resp: &Response{Content: "ok", Provider: "ollama"}}
		fallback := &stubClient{err: errors.New("should not be called")}

		resp, err := NewFallback(primary, fallback, 0).Chat(ctx, msgs, nil)
		if err != nil {
			t.Fatalf("Chat: %v", err)
		}
		if resp.Provider != "ollama" {
			t.Errorf("Provider = %q, want ollama", resp.Provider)
		}
	})

	t.Run("primary failure falls back and tags provider", func(t *testing.T) {
		primary := &stubClient{err: errors.New("connection refused")}
		fallback := &stubClient{resp: &Response{Content: "ok", Provider: ProviderAnthropic}}

		resp, err := NewFallback(primary, fallback, 0).Chat(ctx, msgs, nil)
		if err != nil {
			t.Fatalf("Chat: %v", err)
		}
		if resp.Provider != "anthropic (fallback)" {
			t.Errorf("Provider = %q, want anthropic (fallback)", resp.Provider)
		}
	})

	t.Run("both failing propagates fallback error with primary reason", func(t *testing.T) {
		primary := &stubClient{err: errors.New("connection refused")}
		fallback := &stubClient{err: errors.New("anthropic API returned 401: bad key")}

		_, err := NewFallback(primary, fallback, 0).Chat(ctx, msgs, nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("error %q should mention the primary failure", err)
		}
		if !strings.Contains(err.Error(), "401") {
			t.Errorf("error %q should carry the fallback failure", err)
		}
	})
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain failure", errors.New("connection refused"), false},
		{"status in message", errors.New("anthropic API returned 401: invalid x-api-key"), true},
		{"invalid key code", errors.New("error, status code: 401, message: invalid_api_key"), true},
		{"unauthorized text", errors.New("request failed: Unauthorized"), true},
		{"wrapped", errors.New("fallback LLM failed after primary error (timeout): incorrect API key provided"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
