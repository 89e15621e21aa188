package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finbot/internal/models"
)

// LogLLMCall records an LLM invocation for cost and latency tracking.
func (s *SQLiteStore) LogLLMCall(ctx context.Context, call *models.LLMCall) error {
	if call.ID == uuid.Nil {
		call.ID = uuid.New()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}

	var cost any
	if call.CostUSD != nil {
		cost = call.CostUSD.String()
	}
	var reason any
	if call.FallbackReason != "" {
		reason = call.FallbackReason
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_calls
		 (id, provider, model, input_tokens, output_tokens, latency_ms, is_fallback, fallback_reason, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID.String(), call.Provider, call.Model, call.InputTokens, call.OutputTokens,
		call.LatencyMS, call.IsFallback, reason, cost,
		call.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert llm call: %w", err)
	}
	return nil
}
