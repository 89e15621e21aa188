package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finbot/internal/models"
)

// get_balance derives who owes whom right now.
func getBalanceDefinition() Definition {
	return Definition{
		Schema: toolSchema("get_balance",
			"Get the current balance between the two partners. Returns who owes whom and the amount.",
			map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			}),
		Handler: getBalance,
	}
}

func getBalance(ctx context.Context, inv Invocation, _ json.RawMessage) (map[string]any, error) {
	partnership, partnerID, err := lookupPartner(ctx, inv)
	if err != nil {
		return nil, err
	}
	if partnership == nil {
		return map[string]any{"error": "No partnership found. Please set up a partnership first."}, nil
	}

	balance, err := deriveBalance(ctx, inv, partnerID)
	if err != nil {
		return nil, err
	}
	currency := partnership.DefaultCurrency

	// Positive balance means the partner owes the user.
	var whoOwes, description string
	switch {
	case balance.IsPositive():
		whoOwes = "partner_owes_user"
		description = fmt.Sprintf("Your partner owes you %s %s", currency, balance.Abs())
	case balance.IsNegative():
		whoOwes = "user_owes_partner"
		description = fmt.Sprintf("You owe your partner %s %s", currency, balance.Abs())
	default:
		whoOwes = "settled"
		description = "You're all settled up! No outstanding balance."
	}

	return map[string]any{
		"balance":     balance.String(),
		"currency":    currency,
		"who_owes":    whoOwes,
		"description": description,
	}, nil
}

// query_expenses filters and aggregates ledger entries.
func queryExpensesDefinition() Definition {
	return Definition{
		Schema: toolSchema("query_expenses",
			"Query and aggregate expenses by optional filters: category, date range, event type. Returns totals and optional grouped summaries.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"category": map[string]any{
						"type":        "string",
						"description": "Filter by expense category (e.g. 'groceries').",
					},
					"date_from": map[string]any{
						"type":        "string",
						"description": "Start date in YYYY-MM-DD format (inclusive).",
					},
					"date_to": map[string]any{
						"type":        "string",
						"description": "End date in YYYY-MM-DD format (inclusive).",
					},
					"event_type": map[string]any{
						"type":        "string",
						"enum":        []string{models.EventExpense, models.EventSettlement, models.EventCorrection},
						"description": "Filter by event type.",
					},
					"group_by": map[string]any{
						"type":        "string",
						"enum":        []string{"category"},
						"description": "Group totals by category.",
					},
				},
				"required": []string{},
			}),
		Handler: queryExpenses,
	}
}

type queryExpensesArgs struct {
	Category  string `json:"category,omitempty"`
	DateFrom  string `json:"date_from,omitempty"`
	DateTo    string `json:"date_to,omitempty"`
	EventType string `json:"event_type,omitempty"`
	GroupBy   string `json:"group_by,omitempty"`
}

func queryExpenses(ctx context.Context, inv Invocation, args json.RawMessage) (map[string]any, error) {
	var a queryExpensesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return map[string]any{"error": "invalid query_expenses arguments: " + err.Error()}, nil
	}

	partnership, partnerID, err := lookupPartner(ctx, inv)
	if err != nil {
		return nil, err
	}
	if partnership == nil {
		return map[string]any{"error": "No partnership found."}, nil
	}
	currency := partnership.DefaultCurrency

	filter := models.EntryFilter{
		Category:  a.Category,
		DateFrom:  parseFilterDate(a.DateFrom),
		DateTo:    parseFilterDate(a.DateTo),
		EventType: a.EventType,
	}

	if a.GroupBy == "category" {
		rows, err := inv.Store.CategoryTotals(ctx, inv.UserID, partnerID, filter)
		if err != nil {
			return nil, fmt.Errorf("aggregating by category: %w", err)
		}

		categories := make([]map[string]any, 0, len(rows))
		total := decimal.Zero
		count := 0
		for _, row := range rows {
			categories = append(categories, map[string]any{
				"category": row.Category,
				"total":    row.Total.String(),
				"count":    row.Count,
			})
			total = total.Add(row.Total)
			count += row.Count
		}

		description := fmt.Sprintf("Found %d entries (%s) totalling %s %s.",
			count, filterDescription("", a.DateFrom, a.DateTo, a.EventType), currency, total)

		return map[string]any{
			"total":       total.String(),
			"count":       count,
			"currency":    currency,
			"categories":  categories,
			"entries":     []map[string]any{},
			"description": description,
		}, nil
	}

	entries, err := inv.Store.FilteredEntries(ctx, inv.UserID, partnerID, filter)
	if err != nil {
		return nil, fmt.Errorf("filtering entries: %w", err)
	}

	total := decimal.Zero
	summaries := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		total = total.Add(e.Amount)
		summaries = append(summaries, entrySummary(e, inv.UserID))
	}

	description := fmt.Sprintf("Found %d entries (%s) totalling %s %s.",
		len(entries), filterDescription(a.Category, a.DateFrom, a.DateTo, ""), currency, total)

	return map[string]any{
		"total":       total.String(),
		"count":       len(entries),
		"currency":    currency,
		"entries":     summaries,
		"description": description,
	}, nil
}

// get_recent_entries returns the latest activity.
func getRecentEntriesDefinition() Definition {
	return Definition{
		Schema: toolSchema("get_recent_entries",
			"Get the most recent ledger entries (expenses, settlements, corrections). Useful for showing recent activity or providing context.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of entries to return (default 10).",
						"default":     10,
					},
				},
				"required": []string{},
			}),
		Handler: getRecentEntries,
	}
}

func getRecentEntries(ctx context.Context, inv Invocation, args json.RawMessage) (map[string]any, error) {
	var a struct {
		Limit int `json:"limit,omitempty"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return map[string]any{"error": "invalid get_recent_entries arguments: " + err.Error()}, nil
	}

	partnership, partnerID, err := lookupPartner(ctx, inv)
	if err != nil {
		return nil, err
	}
	if partnership == nil {
		return map[string]any{"error": "No partnership found."}, nil
	}

	entries, err := inv.Store.RecentEntries(ctx, inv.UserID, partnerID, a.Limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent entries: %w", err)
	}

	summaries := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, entrySummary(e, inv.UserID))
	}
	return map[string]any{
		"count":   len(summaries),
		"entries": summaries,
	}, nil
}

// entrySummary is the compact entry shape handed back to the model.
func entrySummary(e models.LedgerEntry, userID int64) map[string]any {
	label := e.Description
	if label == "" {
		label = e.Category
	}
	if label == "" {
		label = e.EventType
	}
	payer := "you"
	if e.PayerTelegramID != userID {
		payer = "partner"
	}
	return map[string]any{
		"date":        e.EventDate.Format(eventDateFormat),
		"type":        e.EventType,
		"amount":      e.Amount.String(),
		"currency":    e.Currency,
		"category":    e.Category,
		"description": label,
		"payer":       payer,
	}
}

func filterDescription(category, dateFrom, dateTo, eventType string) string {
	var parts []string
	if category != "" {
		parts = append(parts, "category: "+category)
	}
	if dateFrom != "" {
		parts = append(parts, "from: "+dateFrom)
	}
	if dateTo != "" {
		parts = append(parts, "to: "+dateTo)
	}
	if eventType != "" {
		parts = append(parts, "type: "+eventType)
	}
	if len(parts) == 0 {
		return "all entries"
	}
	return strings.Join(parts, ", ")
}

func parseFilterDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(eventDateFormat, s)
	if err != nil {
		return nil
	}
	return &t
}
