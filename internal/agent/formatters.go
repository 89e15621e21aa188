package agent

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Telegram HTML formatters for confirmation and query replies.

// buildLabel shows both description and category when they differ, and
// flags categories the store has never seen.
func buildLabel(description, category *string, knownCategories map[string]bool) string {
	desc, cat := "", ""
	if description != nil {
		desc = *description
	}
	if category != nil {
		cat = *category
	}

	catTag := ""
	if cat != "" && knownCategories != nil && !knownCategories[strings.ToLower(cat)] {
		catTag = " [NEW]"
	}

	switch {
	case desc != "" && cat != "" && !strings.EqualFold(desc, cat):
		return fmt.Sprintf("%s (%s%s)", desc, cat, catTag)
	case desc != "":
		return desc
	case cat != "":
		return cat + catTag
	}
	return "expense"
}

// FormatConfirmationSummary renders pending expenses into the rich
// confirmation message shown with the confirm/edit/cancel keyboard.
func FormatConfirmationSummary(expenses []PendingExpense, knownCategories map[string]bool) string {
	if len(expenses) == 0 {
		return "<i>No expenses to display.</i>"
	}

	plural := "s"
	if len(expenses) == 1 {
		plural = ""
	}
	lines := []string{fmt.Sprintf("\U0001f4dd <b>%d expense%s:</b>\n", len(expenses), plural)}

	for i, exp := range expenses {
		label := buildLabel(exp.Description, exp.Category, knownCategories)
		amount := "?"
		if exp.Amount != nil {
			amount = formatFloat(*exp.Amount)
		}

		payerStr := "payer unknown"
		if exp.Payer != nil {
			switch *exp.Payer {
			case "user":
				payerStr = "you paid"
			case "partner":
				payerStr = "partner paid"
			}
		}

		splitStr := "split unknown"
		oweStr := ""
		if exp.SplitPayerPct != nil && exp.SplitOtherPct != nil {
			splitStr = fmt.Sprintf("split %g/%g", *exp.SplitPayerPct, *exp.SplitOtherPct)
			if exp.Amount != nil && exp.Payer != nil {
				owed := *exp.Amount * (*exp.SplitOtherPct / 100)
				switch *exp.Payer {
				case "user":
					oweStr = fmt.Sprintf(" → partner owes %s %g", exp.Currency, owed)
				case "partner":
					oweStr = fmt.Sprintf(" → you owe %s %g", exp.Currency, owed)
				}
			}
		}

		dateStr := "today"
		if exp.EventDate != nil {
			dateStr = *exp.EventDate
		}

		lines = append(lines, fmt.Sprintf(
			"%d. <b>%s</b> — %s %s\n   %s, %s%s\n   Date: %s",
			i+1, label, exp.Currency, amount, payerStr, splitStr, oweStr, dateStr))
		if len(exp.Notes) > 0 {
			lines = append(lines, "   Notes: "+strings.Join(exp.Notes, "; "))
		}
	}
	return strings.Join(lines, "\n")
}

// FormatSettlementConfirmation renders a pending settlement for the
// confirmation step.
func FormatSettlementConfirmation(exp PendingExpense) string {
	amount := "?"
	if exp.Amount != nil {
		amount = formatFloat(*exp.Amount)
	}

	payerStr, direction := "?", ""
	if exp.Payer != nil {
		switch *exp.Payer {
		case "user":
			payerStr, direction = "You", "to your partner"
		case "partner":
			payerStr, direction = "Partner", "to you"
		}
	}

	dateStr := "today"
	if exp.EventDate != nil {
		dateStr = *exp.EventDate
	}
	desc := "Settlement payment"
	if exp.Description != nil {
		desc = *exp.Description
	}

	lines := []string{
		"\U0001f4b8 <b>Settlement:</b>\n",
		fmt.Sprintf("<b>%s</b> pays <b>%s %s</b> %s", payerStr, exp.Currency, amount, direction),
		"Description: " + desc,
		"Date: " + dateStr,
	}
	if len(exp.Notes) > 0 {
		lines = append(lines, "Notes: "+strings.Join(exp.Notes, "; "))
	}
	return strings.Join(lines, "\n") + "\n"
}

// FormatQueryResult renders a query tool result, dispatching on the tool
// that produced it.
func FormatQueryResult(result map[string]any, toolName string) string {
	switch toolName {
	case "get_balance":
		return formatBalanceResult(result)
	case "query_expenses":
		return formatExpenseQueryResult(result)
	case "get_recent_entries":
		return FormatRecentEntries(anySlice(result["entries"]))
	}
	if desc, ok := result["description"].(string); ok && desc != "" {
		return desc
	}
	return "<i>No results.</i>"
}

func formatBalanceResult(result map[string]any) string {
	whoOwes, _ := result["who_owes"].(string)
	if whoOwes == "settled" {
		return "✅ You're all settled up! No outstanding balance."
	}

	currency := stringOr(result["currency"], "ILS")
	amountStr := stringOr(result["balance"], "0")
	if d, err := decimal.NewFromString(amountStr); err == nil {
		amountStr = d.Abs().String()
	}

	switch whoOwes {
	case "partner_owes_user":
		return fmt.Sprintf("\U0001f4b0 Partner owes you <b>%s %s</b>.", currency, amountStr)
	case "user_owes_partner":
		return fmt.Sprintf("\U0001f4b0 You owe your partner <b>%s %s</b>.", currency, amountStr)
	}

	if desc, ok := result["description"].(string); ok && desc != "" {
		return desc
	}
	return "<i>Balance information unavailable.</i>"
}

func formatExpenseQueryResult(result map[string]any) string {
	count := intOr(result["count"])
	if count == 0 {
		return "<i>No matching expenses found.</i>"
	}

	currency := stringOr(result["currency"], "ILS")
	total := stringOr(result["total"], "0")

	if categories := anySlice(result["categories"]); len(categories) > 0 {
		lines := []string{fmt.Sprintf("\U0001f50d <b>Totals by category</b> (total <b>%s %s</b>):\n", currency, total)}
		for i, item := range categories {
			cat := stringOr(item["category"], "uncategorized")
			lines = append(lines, fmt.Sprintf("%d. <b>%s</b> — %s %s (%d entries)",
				i+1, cat, currency, stringOr(item["total"], "0"), intOr(item["count"])))
		}
		return strings.Join(lines, "\n")
	}

	plural := "s"
	if count == 1 {
		plural = ""
	}
	lines := []string{fmt.Sprintf("\U0001f50d <b>%d expense%s</b> totalling <b>%s %s</b>:\n",
		count, plural, currency, total)}

	entries := anySlice(result["entries"])
	shown := entries
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for i, entry := range shown {
		lines = append(lines, fmt.Sprintf("%d. <b>%s</b> — %s %s (%s, %s)",
			i+1,
			stringOr(entry["description"], "expense"),
			stringOr(entry["currency"], currency),
			stringOr(entry["amount"], "?"),
			stringOr(entry["payer"], ""),
			stringOr(entry["date"], "")))
	}
	if count > 10 {
		lines = append(lines, fmt.Sprintf("\n<i>... and %d more.</i>", count-10))
	}
	return strings.Join(lines, "\n")
}

// FormatRecentEntries renders recent ledger activity.
func FormatRecentEntries(entries []map[string]any) string {
	if len(entries) == 0 {
		return "<i>No recent entries.</i>"
	}

	lines := []string{fmt.Sprintf("\U0001f4cb <b>Recent entries (%d):</b>\n", len(entries))}
	for i, entry := range entries {
		entryType := stringOr(entry["type"], "expense")
		icon := "\U0001f6d2"
		if entryType == "settlement" {
			icon = "\U0001f4b8"
		}
		label := stringOr(entry["description"], entryType)
		lines = append(lines, fmt.Sprintf("%s %d. <b>%s</b> — %s %s (%s, %s)",
			icon, i+1, label,
			stringOr(entry["currency"], "ILS"),
			stringOr(entry["amount"], "?"),
			stringOr(entry["payer"], ""),
			stringOr(entry["date"], "")))
	}
	return strings.Join(lines, "\n")
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func intOr(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func anySlice(v any) []map[string]any {
	switch s := v.(type) {
	case []map[string]any:
		return s
	case []any:
		out := make([]map[string]any, 0, len(s))
		for _, item := range s {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}
