package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// WarningPrefix marks soft validation messages that do not block a
// settlement from proceeding.
const WarningPrefix = "WARNING:"

// ValidateSettlement checks a proposed settlement between two partners.
// It returns human-readable messages; an empty slice means valid.
// Messages starting with WarningPrefix are soft warnings, everything
// else blocks the settlement. Every rule is checked independently so a
// single call reports all problems at once.
//
// currentBalance uses the Balance sign convention (positive = userB owes
// userA). Pass nil to skip the overpayment check.
func ValidateSettlement(amount decimal.Decimal, payerTelegramID, userA, userB int64, currentBalance *decimal.Decimal) []string {
	var errs []string

	if amount.LessThanOrEqual(decimal.Zero) {
		errs = append(errs, "Settlement amount must be a positive number.")
	}

	if payerTelegramID != userA && payerTelegramID != userB {
		errs = append(errs, fmt.Sprintf(
			"Payer (%d) is not one of the partners (%d, %d).",
			payerTelegramID, userA, userB))
	}

	if userA == userB {
		errs = append(errs, "The two partner IDs must be different.")
	}

	if currentBalance != nil && amount.GreaterThan(decimal.Zero) {
		if w := overpaymentWarning(amount, payerTelegramID, userA, *currentBalance); w != "" {
			errs = append(errs, w)
		}
	}

	return errs
}

// overpaymentWarning returns a soft warning when the settlement exceeds
// what the payer actually owes, or when the payer owes nothing at all.
func overpaymentWarning(amount decimal.Decimal, payerTelegramID, userA int64, balance decimal.Decimal) string {
	var debt decimal.Decimal
	if payerTelegramID == userA {
		// userA owes something only if balance < 0.
		if balance.LessThan(decimal.Zero) {
			debt = balance.Abs()
		}
	} else {
		// userB owes something only if balance > 0.
		if balance.GreaterThan(decimal.Zero) {
			debt = balance
		}
	}

	if debt.IsZero() {
		return fmt.Sprintf(
			"%s The payer does not currently owe anything. This settlement of %s will create a credit.",
			WarningPrefix, amount)
	}
	if amount.GreaterThan(debt) {
		return fmt.Sprintf(
			"%s Settlement amount (%s) exceeds the outstanding balance (%s). The difference will become a credit.",
			WarningPrefix, amount, debt)
	}
	return ""
}

// SplitWarnings splits validation messages into hard errors and soft
// warnings by the WarningPrefix convention.
func SplitWarnings(messages []string) (hard, warnings []string) {
	for _, m := range messages {
		if len(m) >= len(WarningPrefix) && m[:len(WarningPrefix)] == WarningPrefix {
			warnings = append(warnings, m)
		} else {
			hard = append(hard, m)
		}
	}
	return hard, warnings
}
