package agent

import (
	"testing"
	"time"

	"finbot/internal/tools"
)

var testToday = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func TestLooksLikeSettlement(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"settled up 300", true},
		{"I paid partner 500, settle it", true},
		{"partner paid me 200", true},
		{"she sent me 100", true},
		{"transferred 1000 yesterday", true},
		{"reimbursed for the trip", true},
		{"moved 50 to you", true},
		{"groceries 300", false},
		{"dinner with friends 400", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := looksLikeSettlement(tt.text); got != tt.want {
				t.Errorf("looksLikeSettlement(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestLooksLikeQuery(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"what's the balance?", true},
		{"how much do we owe?", true},
		{"totals by category", true},
		{"show me a summary", true},
		{"how much did we spend on groceries?", true},
		{"show recent transactions", true},
		{"coffee 20", false},
		{"I paid electricity 500", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := looksLikeQuery(tt.text); got != tt.want {
				t.Errorf("looksLikeQuery(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractNumericAmounts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []float64
	}{
		{"plain integer", "groceries 300", []float64{300}},
		{"thousands separator", "rent 2,000 paid", []float64{2000}},
		{"decimal", "coffee 12.50", []float64{12.5}},
		{"iso date ignored", "dinner 400 on 2026-08-20", []float64{400}},
		{"multiple", "water 180 and dinner 400", []float64{180, 400}},
		{"none", "hello there", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractNumericAmounts(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestExtractRelativeDate(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"dinner yesterday 400", "2026-08-24", true},
		{"coffee today", "2026-08-25", true},
		{"flight tomorrow", "2026-08-26", true},
		{"rent a week ago", "2026-08-18", true},
		{"water 3 days ago 180", "2026-08-22", true},
		{"trip 2 weeks ago", "2026-08-11", true},
		{"groceries 300", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := extractRelativeDate(tt.text, testToday)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Format("2006-01-02") != tt.want {
				t.Errorf("got %s, want %s", got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestMaybeFixAmount(t *testing.T) {
	tests := []struct {
		name       string
		parsed     *float64
		candidates []float64
		single     bool
		want       *float64
	}{
		{"nil parsed, one candidate", nil, []float64{2000}, true, f(2000)},
		{"nil parsed, many candidates", nil, []float64{100, 200}, true, nil},
		{"truncated thousands", f(2), []float64{2000}, true, f(2000)},
		{"dropped digits below 1000", f(5), []float64{500}, true, f(500)},
		{"close enough untouched", f(1800), []float64{2000}, true, f(1800)},
		{"multiple candidates takes largest", f(40), []float64{180, 4000}, true, f(4000)},
		{"multi-expense untouched", f(2), []float64{2000}, false, f(2)},
		{"no candidates", f(300), nil, true, f(300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maybeFixAmount(tt.parsed, tt.candidates, tt.single)
			switch {
			case got == nil && tt.want != nil, got != nil && tt.want == nil:
				t.Errorf("got %v, want %v", got, tt.want)
			case got != nil && *got != *tt.want:
				t.Errorf("got %g, want %g", *got, *tt.want)
			}
		})
	}
}

func TestShouldOverrideEventDate(t *testing.T) {
	rel := testToday.AddDate(0, 0, -1)
	tests := []struct {
		name    string
		current string
		want    bool
	}{
		{"empty", "", true},
		{"unparseable", "not-a-date", true},
		{"same year kept", "2026-08-20", false},
		{"invented year overridden", "2023-08-24", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldOverrideEventDate(tt.current, rel); got != tt.want {
				t.Errorf("shouldOverrideEventDate(%q) = %v, want %v", tt.current, got, tt.want)
			}
		})
	}
}

func TestPostprocessExpenses(t *testing.T) {
	t.Run("fixes truncated amount and relative date", func(t *testing.T) {
		expenses := []tools.ParsedExpense{{Amount: f(2), EventDate: "2023-08-24"}}
		out := postprocessExpenses("rent 2,000 yesterday", expenses, testToday)

		if out[0].Amount == nil || *out[0].Amount != 2000 {
			t.Errorf("amount = %v, want 2000", out[0].Amount)
		}
		if out[0].EventDate != "2026-08-24" {
			t.Errorf("event_date = %q, want 2026-08-24", out[0].EventDate)
		}
		if out[0].Notes == "" {
			t.Error("expected correction notes")
		}
	})

	t.Run("leaves good parses alone", func(t *testing.T) {
		expenses := []tools.ParsedExpense{{Amount: f(300), EventDate: ""}}
		out := postprocessExpenses("groceries 300", expenses, testToday)
		if *out[0].Amount != 300 || out[0].EventDate != "" || out[0].Notes != "" {
			t.Errorf("unexpected changes: %+v", out[0])
		}
	})
}

func TestParseSplit(t *testing.T) {
	tests := []struct {
		text  string
		payer float64
		other float64
		ok    bool
	}{
		{"50/50", 50, 50, true},
		{"70 / 30", 70, 30, true},
		{"60%", 60, 40, true},
		{"100", 100, 0, true},
		{"60/30", 0, 0, false},
		{"whatever", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			payer, other, ok := parseSplit(tt.text)
			if ok != tt.ok || payer != tt.payer || other != tt.other {
				t.Errorf("parseSplit(%q) = (%g, %g, %v), want (%g, %g, %v)",
					tt.text, payer, other, ok, tt.payer, tt.other, tt.ok)
			}
		})
	}
}

func TestMergeFieldManually(t *testing.T) {
	t.Run("payer answers", func(t *testing.T) {
		for answer, want := range map[string]string{
			"me":       "user",
			"I did":    "user",
			"partner":  "partner",
			"they did": "partner",
			"dunno":    "user",
		} {
			expenses := []PendingExpense{{Currency: "ILS"}}
			mergeFieldManually(expenses, FieldPayer, answer)
			if expenses[0].Payer == nil || *expenses[0].Payer != want {
				t.Errorf("answer %q: payer = %v, want %q", answer, expenses[0].Payer, want)
			}
		}
	})

	t.Run("only missing fields are touched", func(t *testing.T) {
		partner := "partner"
		expenses := []PendingExpense{
			{Currency: "ILS", Payer: &partner},
			{Currency: "ILS"},
		}
		mergeFieldManually(expenses, FieldPayer, "me")
		if *expenses[0].Payer != "partner" {
			t.Errorf("filled payer was overwritten: %v", *expenses[0].Payer)
		}
		if expenses[1].Payer == nil || *expenses[1].Payer != "user" {
			t.Errorf("missing payer not filled: %v", expenses[1].Payer)
		}
	})

	t.Run("split answer fills both fields", func(t *testing.T) {
		expenses := []PendingExpense{{Currency: "ILS"}}
		mergeFieldManually(expenses, FieldSplitPayerPct, "70/30")
		if expenses[0].SplitPayerPct == nil || *expenses[0].SplitPayerPct != 70 {
			t.Errorf("split_payer_pct = %v", expenses[0].SplitPayerPct)
		}
		if expenses[0].SplitOtherPct == nil || *expenses[0].SplitOtherPct != 30 {
			t.Errorf("split_other_pct = %v", expenses[0].SplitOtherPct)
		}
	})

	t.Run("amount strips thousands separators", func(t *testing.T) {
		expenses := []PendingExpense{{Currency: "ILS"}}
		mergeFieldManually(expenses, FieldAmount, "2,000")
		if expenses[0].Amount == nil || *expenses[0].Amount != 2000 {
			t.Errorf("amount = %v", expenses[0].Amount)
		}
	})

	t.Run("category is lowercased", func(t *testing.T) {
		expenses := []PendingExpense{{Currency: "ILS"}}
		mergeFieldManually(expenses, FieldCategory, " Groceries ")
		if expenses[0].Category == nil || *expenses[0].Category != "groceries" {
			t.Errorf("category = %v", expenses[0].Category)
		}
	})
}
