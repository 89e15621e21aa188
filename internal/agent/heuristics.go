package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"finbot/internal/tools"
)

// Deterministic pre-checks and post-fixes around the LLM. Small local
// models routinely truncate amounts and invent years, so the raw message
// text stays the source of truth for numbers and relative dates.

var (
	settlementWordRe     = regexp.MustCompile(`\bsettle|settled|settlement|settled up\b`)
	settlementPaidMeRe   = regexp.MustCompile(`\bpaid\s+me\b`)
	settlementSentMeRe   = regexp.MustCompile(`\bsent\s+me\b`)
	settlementTransferRe = regexp.MustCompile(`\btransfer(?:red)?\b`)
	settlementToMeRe     = regexp.MustCompile(`\bto\s+me\b`)
	settlementToYouRe    = regexp.MustCompile(`\bto\s+you\b`)

	queryBalanceRe  = regexp.MustCompile(`\bbalance|owe|owed|settled\b`)
	queryTotalRe    = regexp.MustCompile(`\btotal|totals|summary|breakdown\b`)
	queryByCatRe    = regexp.MustCompile(`\bby\s+category|by\s+categories|per\s+category\b`)
	queryCatTotalRe = regexp.MustCompile(`\bcategory\s+totals?\b`)
	querySpendRe    = regexp.MustCompile(`\bspend|spent|expenses|expanses\b`)
	queryRecentRe   = regexp.MustCompile(`\brecent|last\s+few|latest\b`)

	isoDateRe     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	amountRe      = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+(?:\.\d+)?\b|\b\d+(?:\.\d+)?\b`)
	daysAgoRe     = regexp.MustCompile(`\b(\d+)\s+days?\s+ago\b`)
	weeksAgoRe    = regexp.MustCompile(`\b(\d+)\s+weeks?\s+ago\b`)
	containsDigit = regexp.MustCompile(`\d`)
)

// looksLikeSettlement detects partner-to-partner payments before any LLM
// call is made.
func looksLikeSettlement(text string) bool {
	lowered := strings.ToLower(text)
	switch {
	case settlementWordRe.MatchString(lowered):
		return true
	case settlementPaidMeRe.MatchString(lowered), settlementSentMeRe.MatchString(lowered):
		return true
	case settlementTransferRe.MatchString(lowered), strings.Contains(lowered, "reimbursed"):
		return true
	case settlementToMeRe.MatchString(lowered), settlementToYouRe.MatchString(lowered):
		return true
	}
	return false
}

// looksLikeQuery detects expense and balance questions.
func looksLikeQuery(text string) bool {
	lowered := strings.ToLower(text)
	switch {
	case queryBalanceRe.MatchString(lowered):
		return true
	case queryTotalRe.MatchString(lowered):
		return true
	case queryByCatRe.MatchString(lowered), queryCatTotalRe.MatchString(lowered):
		return true
	case querySpendRe.MatchString(lowered):
		return true
	case queryRecentRe.MatchString(lowered):
		return true
	}
	return false
}

func hasDigit(text string) bool {
	return containsDigit.MatchString(text)
}

// extractNumericAmounts pulls candidate amounts out of the raw text,
// skipping ISO dates so "2026-08-20" never becomes an amount.
func extractNumericAmounts(text string) []float64 {
	cleaned := isoDateRe.ReplaceAllString(text, " ")
	var amounts []float64
	for _, m := range amountRe.FindAllString(cleaned, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			continue
		}
		amounts = append(amounts, v)
	}
	return amounts
}

// extractRelativeDate resolves "yesterday", "N days ago" and similar
// phrases against today. Returns ok=false when no phrase is present.
func extractRelativeDate(text string, today time.Time) (time.Time, bool) {
	lowered := strings.ToLower(text)

	switch {
	case strings.Contains(lowered, "yesterday"):
		return today.AddDate(0, 0, -1), true
	case strings.Contains(lowered, "today"):
		return today, true
	case strings.Contains(lowered, "tomorrow"):
		return today.AddDate(0, 0, 1), true
	case strings.Contains(lowered, "one week ago"),
		strings.Contains(lowered, "a week ago"),
		strings.Contains(lowered, "last week"):
		return today.AddDate(0, 0, -7), true
	}

	if m := daysAgoRe.FindStringSubmatch(lowered); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n), true
	}
	if m := weeksAgoRe.FindStringSubmatch(lowered); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n*7), true
	}
	return time.Time{}, false
}

// maybeFixAmount replaces an obviously truncated parsed amount with a
// candidate taken from the raw text. Only single-expense messages are
// corrected; with multiple expenses the mapping is ambiguous.
func maybeFixAmount(parsed *float64, candidates []float64, singleExpense bool) *float64 {
	if len(candidates) == 0 || !singleExpense {
		return parsed
	}

	if parsed == nil {
		if len(candidates) == 1 {
			return &candidates[0]
		}
		return nil
	}

	if len(candidates) == 1 {
		candidate := candidates[0]
		if candidate >= 1000 && *parsed < candidate*0.5 {
			return &candidate
		}
		if candidate < 1000 && *parsed > 0 && candidate / *parsed >= 5 {
			return &candidate
		}
		return parsed
	}

	largest := candidates[0]
	for _, c := range candidates[1:] {
		if c > largest {
			largest = c
		}
	}
	if largest >= 1000 && *parsed < largest*0.5 {
		return &largest
	}
	return parsed
}

// shouldOverrideEventDate decides whether a relative date from the raw
// text beats the model's parsed date. A parsed date more than a year off
// usually means the model invented the year.
func shouldOverrideEventDate(current string, relative time.Time) bool {
	if current == "" {
		return true
	}
	parsed, err := time.Parse("2006-01-02", current)
	if err != nil {
		return true
	}
	diff := parsed.Sub(relative).Hours() / 24
	if diff < 0 {
		diff = -diff
	}
	return diff > 366
}

// postprocessExpenses applies the amount and date fixes to a parsed
// batch, annotating each corrected expense.
func postprocessExpenses(text string, expenses []tools.ParsedExpense, today time.Time) []tools.ParsedExpense {
	if len(expenses) == 0 {
		return expenses
	}

	candidates := extractNumericAmounts(text)
	relDate, hasRelDate := extractRelativeDate(text, today)
	single := len(expenses) == 1

	for i := range expenses {
		exp := &expenses[i]
		var notes []string
		if exp.Notes != "" {
			notes = append(notes, exp.Notes)
		}

		fixed := maybeFixAmount(exp.Amount, candidates, single)
		if fixed != nil && (exp.Amount == nil || *fixed != *exp.Amount) {
			if exp.Amount != nil {
				notes = append(notes, fmt.Sprintf("Amount auto-corrected from %g to %g", *exp.Amount, *fixed))
			}
			exp.Amount = fixed
		}

		if hasRelDate && shouldOverrideEventDate(exp.EventDate, relDate) {
			exp.EventDate = relDate.Format("2006-01-02")
			notes = append(notes, "Date auto-corrected to "+exp.EventDate)
		}

		exp.Notes = strings.Join(notes, "; ")
	}
	return expenses
}

// parseSplit parses a split answer like "50/50", "70/30" or a bare
// percentage like "60%". Returns ok=false when nothing parses.
func parseSplit(text string) (payerPct, otherPct float64, ok bool) {
	compact := strings.ReplaceAll(text, " ", "")
	if strings.Contains(compact, "/") {
		parts := strings.Split(compact, "/")
		if len(parts) == 2 {
			a, errA := strconv.ParseFloat(parts[0], 64)
			b, errB := strconv.ParseFloat(parts[1], 64)
			if errA == nil && errB == nil {
				if diff := a + b - 100; diff < 0.01 && diff > -0.01 {
					return a, b, true
				}
			}
		}
	}
	for _, word := range strings.Fields(text) {
		pct, err := strconv.ParseFloat(strings.TrimRight(word, "%"), 64)
		if err != nil {
			continue
		}
		if pct >= 0 && pct <= 100 {
			return pct, 100 - pct, true
		}
	}
	return 0, 0, false
}

// mergeFieldManually applies a clarification answer to every pending
// expense that is still missing the field. Used when the LLM merge call
// fails or returns no tool calls.
func mergeFieldManually(expenses []PendingExpense, field, answer string) {
	stripped := strings.ToLower(strings.TrimSpace(answer))

	for i := range expenses {
		exp := &expenses[i]
		switch field {
		case FieldPayer:
			if exp.Payer != nil {
				continue
			}
			payer := "user"
			switch stripped {
			case "me", "i", "i did", "i paid", "user":
				payer = "user"
			case "partner", "they", "they did", "them":
				payer = "partner"
			}
			exp.Payer = &payer

		case FieldSplitPayerPct, FieldSplitOtherPct:
			filled := exp.SplitPayerPct
			if field == FieldSplitOtherPct {
				filled = exp.SplitOtherPct
			}
			if filled != nil {
				continue
			}
			if payerPct, otherPct, ok := parseSplit(stripped); ok {
				exp.SplitPayerPct = &payerPct
				exp.SplitOtherPct = &otherPct
			}

		case FieldCategory:
			if exp.Category != nil {
				continue
			}
			if stripped != "" {
				category := stripped
				exp.Category = &category
			}

		case FieldAmount:
			if exp.Amount != nil {
				continue
			}
			if v, err := strconv.ParseFloat(strings.ReplaceAll(stripped, ",", ""), 64); err == nil {
				exp.Amount = &v
			}
		}
	}
}

// resolveDate converts a YYYY-MM-DD string to a time, defaulting to
// today for empty or unparseable input.
func resolveDate(dateStr string, today time.Time) time.Time {
	if dateStr == "" {
		return today
	}
	parsed, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return today
	}
	return parsed
}
