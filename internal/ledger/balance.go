// Package ledger holds the pure money math: balance derivation from ledger
// replay and settlement validation. Nothing here touches storage; callers
// fetch entries and pass them in, which keeps every function trivially
// testable.
package ledger

import (
	"github.com/shopspring/decimal"

	"finbot/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Balance derives the net balance between two partners by replaying all
// active ledger entries. The balance is always derived, never stored.
//
// Sign convention:
//   - positive: userB owes userA
//   - negative: userA owes userB
//   - zero: settled up
func Balance(entries []models.LedgerEntry, userA, userB int64) decimal.Decimal {
	balance := decimal.Zero
	for i := range entries {
		balance = balance.Add(entryEffect(&entries[i], userA, userB))
	}
	return balance
}

// entryEffect computes how a single entry shifts the balance.
// Unknown event types contribute nothing.
func entryEffect(entry *models.LedgerEntry, userA, userB int64) decimal.Decimal {
	switch entry.EventType {
	case models.EventExpense, models.EventCorrection:
		return expenseEffect(entry, userA, userB)
	case models.EventSettlement:
		return settlementEffect(entry, userA, userB)
	}
	return decimal.Zero
}

// expenseEffect: the payer covered the full amount, so the other partner
// owes amount * split_other_pct / 100.
func expenseEffect(entry *models.LedgerEntry, userA, userB int64) decimal.Decimal {
	otherShare := entry.Amount.Mul(entry.SplitOtherPct).Div(hundred)

	switch entry.PayerTelegramID {
	case userA:
		return otherShare
	case userB:
		return otherShare.Neg()
	}
	// Payer is neither partner (shouldn't happen) -- no effect.
	return decimal.Zero
}

// settlementEffect: a direct payment from the payer to the other partner,
// reducing whatever the payer owes (or building a credit).
func settlementEffect(entry *models.LedgerEntry, userA, userB int64) decimal.Decimal {
	switch entry.PayerTelegramID {
	case userA:
		return entry.Amount
	case userB:
		return entry.Amount.Neg()
	}
	return decimal.Zero
}
