package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicChat(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "Logging it."},
				{"type": "tool_use", "id": "tu_1", "name": "parse_expense", "input": {"intent": "expense"}}
			],
			"usage": {"input_tokens": 120, "output_tokens": 45}
		}`))
	}))
	defer srv.Close()

	c := newAnthropicClient("test-key")
	c.baseURL = srv.URL

	resp, err := c.chat(context.Background(), "claude-3-5-haiku-latest",
		[]Message{
			{Role: "system", Content: "You are an expense tracker."},
			{Role: "user", Content: "coffee 20"},
		},
		[]ToolSchema{{Name: "parse_expense", Description: "Parse expenses", Parameters: map[string]any{"type": "object"}}},
	)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if gotReq.System != "You are an expense tracker." {
		t.Errorf("system = %q, want it lifted out of the messages", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want only the user turn", gotReq.Messages)
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Name != "parse_expense" {
		t.Errorf("tools = %+v", gotReq.Tools)
	}

	if resp.Content != "Logging it." {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v, want 1", resp.ToolCalls)
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "parse_expense" || tc.ID != "tu_1" {
		t.Errorf("tool call = %+v", tc)
	}
	var args struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal(tc.Arguments, &args); err != nil || args.Intent != "expense" {
		t.Errorf("arguments %s did not round-trip (%v)", tc.Arguments, err)
	}
	if resp.InputTokens != 120 || resp.OutputTokens != 45 {
		t.Errorf("usage = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if resp.Provider != ProviderAnthropic {
		t.Errorf("Provider = %q", resp.Provider)
	}
}

func TestAnthropicChatErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newAnthropicClient("bad-key")
	c.baseURL = srv.URL

	_, err := c.chat(context.Background(), "claude-3-5-haiku-latest", []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q should carry the HTTP status", err)
	}
	if !IsAuthError(err) {
		t.Errorf("IsAuthError(%v) = false, want true", err)
	}
}
