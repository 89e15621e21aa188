package bot

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatBalance(t *testing.T) {
	tests := []struct {
		name    string
		balance decimal.Decimal
		want    string
	}{
		{"settled", decimal.Zero, "You're all settled up! No outstanding balance."},
		{"partner owes", decimal.NewFromInt(150), "Partner owes you <b>ILS 150</b>."},
		{"user owes", decimal.NewFromInt(-75), "You owe Partner <b>ILS 75</b>."},
		{"fractional", decimal.RequireFromString("-0.5"), "You owe Partner <b>ILS 0.5</b>."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatBalance(tt.balance, "ILS"); got != tt.want {
				t.Errorf("formatBalance(%s) = %q, want %q", tt.balance, got, tt.want)
			}
		})
	}
}
