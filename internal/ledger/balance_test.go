package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"finbot/internal/models"
)

const (
	alice int64 = 100
	bob   int64 = 200
)

func entry(eventType string, payer int64, amount string, otherPct int64) models.LedgerEntry {
	return models.LedgerEntry{
		EventType:       eventType,
		Amount:          decimal.RequireFromString(amount),
		PayerTelegramID: payer,
		SplitPayerPct:   decimal.NewFromInt(100 - otherPct),
		SplitOtherPct:   decimal.NewFromInt(otherPct),
	}
}

func TestBalance(t *testing.T) {
	tests := []struct {
		name    string
		entries []models.LedgerEntry
		want    string
	}{
		{
			name:    "empty ledger is settled",
			entries: nil,
			want:    "0",
		},
		{
			name: "expense paid by A shifts positive by other share",
			entries: []models.LedgerEntry{
				entry(models.EventExpense, alice, "300", 50),
			},
			want: "150",
		},
		{
			name: "expense paid by B shifts negative",
			entries: []models.LedgerEntry{
				entry(models.EventExpense, bob, "200", 30),
			},
			want: "-60",
		},
		{
			name: "correction behaves like an expense",
			entries: []models.LedgerEntry{
				entry(models.EventCorrection, alice, "100", 70),
			},
			want: "70",
		},
		{
			name: "settlement counts its full amount",
			entries: []models.LedgerEntry{
				entry(models.EventExpense, alice, "300", 50), // B owes 150
				entry(models.EventSettlement, bob, "150", 0), // B pays it off
			},
			want: "0",
		},
		{
			name: "settlement beyond debt creates a credit",
			entries: []models.LedgerEntry{
				entry(models.EventExpense, alice, "100", 50),
				entry(models.EventSettlement, bob, "80", 0),
			},
			want: "-30",
		},
		{
			name: "unknown event types are ignored",
			entries: []models.LedgerEntry{
				entry("refund", alice, "500", 50),
				entry(models.EventExpense, alice, "100", 50),
			},
			want: "50",
		},
		{
			name: "payer outside the pair has no effect",
			entries: []models.LedgerEntry{
				entry(models.EventExpense, 999, "100", 50),
			},
			want: "0",
		},
		{
			name: "decimal amounts accumulate without float drift",
			entries: []models.LedgerEntry{
				entry(models.EventExpense, alice, "0.1", 100),
				entry(models.EventExpense, alice, "0.2", 100),
			},
			want: "0.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Balance(tt.entries, alice, bob)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Balance() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBalanceAntisymmetry(t *testing.T) {
	entries := []models.LedgerEntry{
		entry(models.EventExpense, alice, "300", 50),
		entry(models.EventExpense, bob, "120", 25),
		entry(models.EventSettlement, bob, "40", 0),
	}

	ab := Balance(entries, alice, bob)
	ba := Balance(entries, bob, alice)
	if !ab.Equal(ba.Neg()) {
		t.Errorf("Balance(A,B) = %s, Balance(B,A) = %s; expected exact negation", ab, ba)
	}
}

func TestBalanceIsPure(t *testing.T) {
	entries := []models.LedgerEntry{
		entry(models.EventExpense, alice, "300", 50),
		entry(models.EventSettlement, bob, "100", 0),
	}

	first := Balance(entries, alice, bob)
	second := Balance(entries, alice, bob)
	if !first.Equal(second) {
		t.Errorf("Repeated replay differs: %s vs %s", first, second)
	}
}
