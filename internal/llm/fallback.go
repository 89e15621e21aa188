package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finbot/internal/metrics"
)

// FallbackClient is a composite client: it tries the primary (local)
// client first and retries once via the fallback (paid) client on any
// primary error. The fallback's provider tag gets a " (fallback)" suffix
// so call logging can tell the paths apart. If the fallback also fails,
// its error is propagated.
type FallbackClient struct {
	primary  Client
	fallback Client
	timeout  time.Duration
}

// NewFallback builds the composite. timeout bounds each individual
// attempt so a hung local server still triggers the fallback hop;
// zero means no per-attempt deadline.
func NewFallback(primary, fallback Client, timeout time.Duration) *FallbackClient {
	return &FallbackClient{primary: primary, fallback: fallback, timeout: timeout}
}

// Chat tries the primary client, then the fallback.
func (c *FallbackClient) Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	resp, primaryErr := c.attempt(ctx, c.primary, messages, tools)
	if primaryErr == nil {
		observe(resp, "false", "ok")
		slog.Debug("primary LLM responded",
			"provider", resp.Provider,
			"latency_ms", resp.LatencyMS,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	reason := fmt.Sprintf("%T: %v", primaryErr, primaryErr)
	slog.Warn("primary LLM call failed, falling back to paid API", "reason", reason)
	metrics.LLMCalls.WithLabelValues("primary", "false", "error").Inc()

	resp, fallbackErr := c.attempt(ctx, c.fallback, messages, tools)
	if fallbackErr != nil {
		slog.Error("fallback LLM also failed", "error", fallbackErr)
		metrics.LLMCalls.WithLabelValues("fallback", "true", "error").Inc()
		return nil, fmt.Errorf("fallback LLM failed after primary error (%v): %w", primaryErr, fallbackErr)
	}

	resp.Provider = resp.Provider + " (fallback)"
	observe(resp, "true", "ok")
	slog.Info("fallback LLM responded", "latency_ms", resp.LatencyMS, "reason", reason)
	return resp, nil
}

func (c *FallbackClient) attempt(ctx context.Context, client Client, messages []Message, tools []ToolSchema) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return client.Chat(ctx, messages, tools)
}

func observe(resp *Response, fallback, status string) {
	metrics.LLMCalls.WithLabelValues(resp.Provider, fallback, status).Inc()
	metrics.LLMLatency.WithLabelValues(resp.Provider).Observe(float64(resp.LatencyMS) / 1000)
}
