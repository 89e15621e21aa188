package agent

import (
	"testing"

	"finbot/internal/tools"
)

func TestPendingExpenseMissingFields(t *testing.T) {
	t.Run("empty expense misses everything", func(t *testing.T) {
		exp := PendingExpense{Currency: "ILS"}
		missing := exp.MissingFields()
		if len(missing) != len(RequiredExpenseFields) {
			t.Errorf("missing = %v", missing)
		}
		if exp.IsComplete() {
			t.Error("empty expense reported complete")
		}
	})

	t.Run("complete expense", func(t *testing.T) {
		amount, pct := 300.0, 50.0
		category, payer := "groceries", "user"
		exp := PendingExpense{
			Amount:        &amount,
			Currency:      "ILS",
			Category:      &category,
			Payer:         &payer,
			SplitPayerPct: &pct,
			SplitOtherPct: &pct,
		}
		if !exp.IsComplete() {
			t.Errorf("missing = %v", exp.MissingFields())
		}
	})
}

func TestNewPendingExpense(t *testing.T) {
	t.Run("defaults currency", func(t *testing.T) {
		exp := NewPendingExpense(tools.ParsedExpense{Amount: f(20)}, "ILS")
		if exp.Currency != "ILS" {
			t.Errorf("currency = %q", exp.Currency)
		}
	})

	t.Run("keeps explicit currency and optional fields", func(t *testing.T) {
		exp := NewPendingExpense(tools.ParsedExpense{
			Amount:   f(20),
			Currency: "USD",
			Category: "coffee",
			Payer:    "partner",
		}, "ILS")
		if exp.Currency != "USD" {
			t.Errorf("currency = %q", exp.Currency)
		}
		if exp.Category == nil || *exp.Category != "coffee" {
			t.Errorf("category = %v", exp.Category)
		}
		if exp.Payer == nil || *exp.Payer != "partner" {
			t.Errorf("payer = %v", exp.Payer)
		}
		if exp.Description != nil || exp.EventDate != nil {
			t.Errorf("unset fields should stay nil: %+v", exp)
		}
	})
}

func TestContextFirstMissing(t *testing.T) {
	amount, pct := 300.0, 50.0
	category, payer := "groceries", "user"
	complete := PendingExpense{
		Amount: &amount, Currency: "ILS", Category: &category,
		Payer: &payer, SplitPayerPct: &pct, SplitOtherPct: &pct,
	}
	incomplete := PendingExpense{Amount: &amount, Currency: "ILS", Payer: &payer}

	ctx := &Context{PendingExpenses: []PendingExpense{complete, incomplete}}
	if ctx.AllComplete() {
		t.Error("AllComplete = true with an incomplete expense")
	}
	idx, field, ok := ctx.FirstMissing()
	if !ok || idx != 1 || field != FieldCategory {
		t.Errorf("FirstMissing = (%d, %q, %v)", idx, field, ok)
	}

	ctx.PendingExpenses = []PendingExpense{complete}
	if !ctx.AllComplete() {
		t.Error("AllComplete = false with all complete")
	}
	if _, _, ok := ctx.FirstMissing(); ok {
		t.Error("FirstMissing reported a gap in a complete batch")
	}
}

func TestConversationStore(t *testing.T) {
	store := NewStore()
	const uid = int64(42)

	if store.Has(uid) {
		t.Error("fresh store should have no context")
	}

	ctx := store.Get(uid)
	if ctx.State != StateIdle {
		t.Errorf("new context state = %q", ctx.State)
	}
	if !store.Has(uid) {
		t.Error("Get should create the context")
	}

	ctx.State = StateConfirming
	if store.Get(uid).State != StateConfirming {
		t.Error("mutations through the returned pointer should persist")
	}

	store.Clear(uid)
	if store.Has(uid) {
		t.Error("Clear should remove the context")
	}
}
