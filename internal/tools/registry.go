// Package tools holds the function-calling tools the assistant exposes
// to the language model, plus the registry that dispatches tool calls.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"finbot/internal/llm"
	"finbot/internal/metrics"
	"finbot/internal/storage"
)

// ErrUnknownTool is returned by Execute for a tool name that was never
// registered.
var ErrUnknownTool = errors.New("unknown tool")

// Invocation carries the per-message context a tool handler needs but the
// model must never supply: who is talking, which raw input the call came
// from, and where to read and write.
type Invocation struct {
	UserID     int64
	RawInputID uuid.UUID
	Store      storage.Store
	Currency   string
}

// Handler executes one tool call. Results are returned as a JSON-shaped
// map; a map containing an "error" key is a tool-level failure the
// caller should surface, while a Go error means the handler itself broke.
type Handler func(ctx context.Context, inv Invocation, args json.RawMessage) (map[string]any, error)

// Definition pairs a tool's schema with its handler.
type Definition struct {
	Schema  llm.ToolSchema
	Handler Handler
}

// Registry maps tool names to definitions.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// NewDefault returns a registry with the full tool set registered.
func NewDefault() *Registry {
	r := NewRegistry()
	for _, def := range []Definition{
		parseExpenseDefinition(),
		logSettlementDefinition(),
		validateSettlementDefinition(),
		getBalanceDefinition(),
		queryExpensesDefinition(),
		getRecentEntriesDefinition(),
		listCategoriesDefinition(),
		createCategoryDefinition(),
	} {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a definition. Re-registering a name is an error.
func (r *Registry) Register(def Definition) error {
	name := def.Schema.Name
	if name == "" {
		return errors.New("tool definition has no name")
	}
	if _, ok := r.defs[name]; ok {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

// Schemas returns the tool schemas in registration order, ready to hand
// to an LLM client.
func (r *Registry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name].Schema)
	}
	return out
}

// toolSchema is a small constructor to keep the definitions readable.
func toolSchema(name, description string, parameters map[string]any) llm.ToolSchema {
	return llm.ToolSchema{Name: name, Description: description, Parameters: parameters}
}

// Execute runs the named tool with the given arguments.
func (r *Registry) Execute(ctx context.Context, inv Invocation, name string, args json.RawMessage) (map[string]any, error) {
	def, ok := r.defs[name]
	if !ok {
		metrics.ToolExecutions.WithLabelValues(name, "unknown").Inc()
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	result, err := def.Handler(ctx, inv, args)
	if err != nil {
		metrics.ToolExecutions.WithLabelValues(name, "error").Inc()
		slog.Error("tool execution failed", "tool", name, "user_id", inv.UserID, "error", err)
		return nil, fmt.Errorf("executing tool %q: %w", name, err)
	}

	status := "ok"
	if _, failed := result["error"]; failed {
		status = "rejected"
	}
	metrics.ToolExecutions.WithLabelValues(name, status).Inc()
	slog.Debug("tool executed", "tool", name, "user_id", inv.UserID, "status", status)
	return result, nil
}
