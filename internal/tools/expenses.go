package tools

import (
	"context"
	"encoding/json"
)

// Intents the model can assign to a message.
const (
	IntentExpense    = "expense"
	IntentSettlement = "settlement"
	IntentQuery      = "query"
	IntentGreeting   = "greeting"
	IntentUnknown    = "unknown"
)

// ParsedExpense is one expense as extracted by the model. Every field
// except the raw text may legitimately be absent, so they are pointers;
// the orchestrator decides which gaps need a clarification question.
type ParsedExpense struct {
	Amount        *float64 `json:"amount,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Category      string   `json:"category,omitempty"`
	Description   string   `json:"description,omitempty"`
	Payer         string   `json:"payer,omitempty"`
	SplitPayerPct *float64 `json:"split_payer_pct,omitempty"`
	SplitOtherPct *float64 `json:"split_other_pct,omitempty"`
	EventDate     string   `json:"event_date,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// ParseExpenseArgs is the argument payload of a parse_expense call.
type ParseExpenseArgs struct {
	Expenses []ParsedExpense `json:"expenses"`
	Intent   string          `json:"intent"`
	RawText  string          `json:"raw_text,omitempty"`
}

// parse_expense is an extraction tool: the model structures the user's
// message and the orchestrator takes over from there, so the handler is
// a passthrough that echoes the arguments back as the result.
func parseExpenseDefinition() Definition {
	return Definition{
		Schema: toolSchema("parse_expense",
			"Extract structured expense data from a user message about shared spending between two partners. Also classifies the overall intent of the message.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expenses": map[string]any{
						"type":        "array",
						"description": "All expenses mentioned in the message, one object each.",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"amount": map[string]any{
									"type":        "number",
									"description": "Expense amount. Omit if not stated.",
								},
								"currency": map[string]any{
									"type":        "string",
									"description": "Currency code, e.g. ILS or USD. Defaults to ILS.",
								},
								"category": map[string]any{
									"type":        "string",
									"description": "Expense category such as groceries, dining, transport.",
								},
								"description": map[string]any{
									"type":        "string",
									"description": "Short free-text description of the expense.",
								},
								"payer": map[string]any{
									"type":        "string",
									"enum":        []string{"user", "partner"},
									"description": "Who paid: the user sending the message, or their partner.",
								},
								"split_payer_pct": map[string]any{
									"type":        "number",
									"description": "Percentage of the expense borne by the payer, 0-100.",
								},
								"split_other_pct": map[string]any{
									"type":        "number",
									"description": "Percentage borne by the other partner, 0-100. Must sum to 100 with split_payer_pct.",
								},
								"event_date": map[string]any{
									"type":        "string",
									"description": "Date of the expense in YYYY-MM-DD, or a relative phrase like 'yesterday'.",
								},
							},
							"required": []string{"amount"},
						},
					},
					"intent": map[string]any{
						"type":        "string",
						"enum":        []string{IntentExpense, IntentSettlement, IntentQuery, IntentGreeting, IntentUnknown},
						"description": "Overall intent of the message.",
					},
					"raw_text": map[string]any{
						"type":        "string",
						"description": "The original user message.",
					},
				},
				"required": []string{"expenses", "intent"},
			}),
		Handler: func(ctx context.Context, inv Invocation, args json.RawMessage) (map[string]any, error) {
			var parsed ParseExpenseArgs
			if err := json.Unmarshal(args, &parsed); err != nil {
				return map[string]any{"error": "invalid parse_expense arguments: " + err.Error()}, nil
			}
			out := map[string]any{
				"expenses": parsed.Expenses,
				"intent":   parsed.Intent,
			}
			if parsed.RawText != "" {
				out["raw_text"] = parsed.RawText
			}
			return out, nil
		},
	}
}
