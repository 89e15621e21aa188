package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finbot/internal/models"
	"finbot/internal/storage/sqlite"
)

const (
	testUser    = int64(100)
	testPartner = int64(200)
)

func newTestInvocation(t *testing.T) Invocation {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "finbot-tools-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if _, _, err := store.CreatePartnership(ctx, testUser, testPartner, "ILS"); err != nil {
		t.Fatalf("CreatePartnership failed: %v", err)
	}
	rawID, err := store.SaveRawInput(ctx, testUser, "test input")
	if err != nil {
		t.Fatalf("SaveRawInput failed: %v", err)
	}
	return Invocation{
		UserID:     testUser,
		RawInputID: rawID,
		Store:      store,
		Currency:   "ILS",
	}
}

func saveExpense(t *testing.T, inv Invocation, payer int64, amount, category, date string) {
	t.Helper()
	d, _ := time.Parse("2006-01-02", date)
	entry := &models.LedgerEntry{
		RawInputID:      inv.RawInputID,
		EventType:       models.EventExpense,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "ILS",
		Category:        category,
		PayerTelegramID: payer,
		SplitPayerPct:   decimal.NewFromInt(50),
		SplitOtherPct:   decimal.NewFromInt(50),
		EventDate:       d,
	}
	if err := inv.Store.SaveLedgerEntry(context.Background(), entry); err != nil {
		t.Fatalf("SaveLedgerEntry failed: %v", err)
	}
}

func execute(t *testing.T, r *Registry, inv Invocation, name, args string) map[string]any {
	t.Helper()
	result, err := r.Execute(context.Background(), inv, name, json.RawMessage(args))
	if err != nil {
		t.Fatalf("Execute(%s) failed: %v", name, err)
	}
	return result
}

func TestRegistry(t *testing.T) {
	t.Run("NewDefault registers the full tool set", func(t *testing.T) {
		r := NewDefault()
		schemas := r.Schemas()
		want := []string{
			"parse_expense", "log_settlement", "validate_settlement",
			"get_balance", "query_expenses", "get_recent_entries",
			"list_categories", "create_category",
		}
		if len(schemas) != len(want) {
			t.Fatalf("got %d schemas, want %d", len(schemas), len(want))
		}
		for i, name := range want {
			if schemas[i].Name != name {
				t.Errorf("schemas[%d] = %q, want %q", i, schemas[i].Name, name)
			}
		}
	})

	t.Run("duplicate registration is an error", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(getBalanceDefinition()); err != nil {
			t.Fatalf("first Register failed: %v", err)
		}
		if err := r.Register(getBalanceDefinition()); err == nil {
			t.Error("expected error on duplicate registration")
		}
	})

	t.Run("unknown tool returns sentinel", func(t *testing.T) {
		inv := newTestInvocation(t)
		_, err := NewDefault().Execute(context.Background(), inv, "drop_tables", nil)
		if !errors.Is(err, ErrUnknownTool) {
			t.Errorf("err = %v, want ErrUnknownTool", err)
		}
	})
}

func TestParseExpenseTool(t *testing.T) {
	inv := newTestInvocation(t)
	r := NewDefault()

	result := execute(t, r, inv, "parse_expense",
		`{"expenses": [{"amount": 300, "category": "groceries", "payer": "user"}], "intent": "expense"}`)

	if result["intent"] != "expense" {
		t.Errorf("intent = %v", result["intent"])
	}
	expenses, ok := result["expenses"].([]ParsedExpense)
	if !ok || len(expenses) != 1 {
		t.Fatalf("expenses = %#v, want one ParsedExpense", result["expenses"])
	}
	if expenses[0].Amount == nil || *expenses[0].Amount != 300 {
		t.Errorf("amount = %v, want 300", expenses[0].Amount)
	}
}

func TestGetBalanceTool(t *testing.T) {
	inv := newTestInvocation(t)
	r := NewDefault()

	t.Run("settled with no entries", func(t *testing.T) {
		result := execute(t, r, inv, "get_balance", `{}`)
		if result["who_owes"] != "settled" {
			t.Errorf("who_owes = %v, want settled", result["who_owes"])
		}
	})

	t.Run("positive balance means partner owes user", func(t *testing.T) {
		saveExpense(t, inv, testUser, "300", "groceries", "2026-08-20")
		result := execute(t, r, inv, "get_balance", `{}`)
		if result["who_owes"] != "partner_owes_user" {
			t.Errorf("who_owes = %v", result["who_owes"])
		}
		if result["balance"] != "150" {
			t.Errorf("balance = %v, want 150", result["balance"])
		}
		desc, _ := result["description"].(string)
		if !strings.Contains(desc, "Your partner owes you ILS 150") {
			t.Errorf("description = %q", desc)
		}
	})

	t.Run("no partnership", func(t *testing.T) {
		stranger := inv
		stranger.UserID = 999
		result := execute(t, r, stranger, "get_balance", `{}`)
		errMsg, _ := result["error"].(string)
		if !strings.Contains(errMsg, "No partnership found") {
			t.Errorf("error = %q", errMsg)
		}
	})
}

func TestLogSettlementTool(t *testing.T) {
	inv := newTestInvocation(t)
	r := NewDefault()

	// Partner owes the user 150 after this.
	saveExpense(t, inv, testUser, "300", "groceries", "2026-08-20")

	t.Run("records a valid settlement", func(t *testing.T) {
		result := execute(t, r, inv, "log_settlement", `{"amount": 150, "payer": "partner"}`)
		if result["success"] != true {
			t.Fatalf("result = %#v", result)
		}
		desc, _ := result["description"].(string)
		if desc != "Partner paid ILS 150 as a settlement." {
			t.Errorf("description = %q", desc)
		}

		balance := execute(t, r, inv, "get_balance", `{}`)
		if balance["who_owes"] != "settled" {
			t.Errorf("after settlement who_owes = %v, want settled", balance["who_owes"])
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		result := execute(t, r, inv, "log_settlement", `{"amount": -5, "payer": "user"}`)
		errMsg, _ := result["error"].(string)
		if !strings.Contains(errMsg, "positive number") {
			t.Errorf("error = %q", errMsg)
		}
	})
}

func TestValidateSettlementTool(t *testing.T) {
	inv := newTestInvocation(t)
	r := NewDefault()
	saveExpense(t, inv, testUser, "300", "groceries", "2026-08-20")

	t.Run("overpayment warns but stays valid", func(t *testing.T) {
		result := execute(t, r, inv, "validate_settlement", `{"amount": 500, "payer": "partner"}`)
		if result["valid"] != true {
			t.Errorf("valid = %v", result["valid"])
		}
		warnings, _ := result["warnings"].([]string)
		if len(warnings) != 1 || !strings.Contains(warnings[0], "exceeds the outstanding balance") {
			t.Errorf("warnings = %v", warnings)
		}
		if result["current_balance"] != "150" {
			t.Errorf("current_balance = %v", result["current_balance"])
		}
	})
}

func TestQueryExpensesTool(t *testing.T) {
	inv := newTestInvocation(t)
	r := NewDefault()
	saveExpense(t, inv, testUser, "300", "groceries", "2026-08-20")
	saveExpense(t, inv, testPartner, "120", "dining", "2026-08-21")
	saveExpense(t, inv, testUser, "80", "groceries", "2026-08-22")

	t.Run("unfiltered totals everything", func(t *testing.T) {
		result := execute(t, r, inv, "query_expenses", `{}`)
		if result["total"] != "500" || result["count"] != 3 {
			t.Errorf("total = %v count = %v", result["total"], result["count"])
		}
		desc, _ := result["description"].(string)
		if !strings.Contains(desc, "Found 3 entries (all entries) totalling ILS 500.") {
			t.Errorf("description = %q", desc)
		}
	})

	t.Run("category filter", func(t *testing.T) {
		result := execute(t, r, inv, "query_expenses", `{"category": "groceries"}`)
		if result["total"] != "380" || result["count"] != 2 {
			t.Errorf("total = %v count = %v", result["total"], result["count"])
		}
		desc, _ := result["description"].(string)
		if !strings.Contains(desc, "category: groceries") {
			t.Errorf("description = %q", desc)
		}
	})

	t.Run("group by category", func(t *testing.T) {
		result := execute(t, r, inv, "query_expenses", `{"group_by": "category"}`)
		categories, _ := result["categories"].([]map[string]any)
		if len(categories) != 2 {
			t.Fatalf("categories = %#v", result["categories"])
		}
		// Largest total first.
		if categories[0]["category"] != "groceries" || categories[0]["total"] != "380" {
			t.Errorf("categories[0] = %v", categories[0])
		}
		if result["total"] != "500" {
			t.Errorf("total = %v", result["total"])
		}
	})
}

func TestGetRecentEntriesTool(t *testing.T) {
	inv := newTestInvocation(t)
	r := NewDefault()
	saveExpense(t, inv, testUser, "300", "groceries", "2026-08-20")
	saveExpense(t, inv, testPartner, "120", "dining", "2026-08-21")

	result := execute(t, r, inv, "get_recent_entries", `{"limit": 5}`)
	if result["count"] != 2 {
		t.Fatalf("count = %v", result["count"])
	}
	entries, _ := result["entries"].([]map[string]any)
	if len(entries) != 2 {
		t.Fatalf("entries = %#v", result["entries"])
	}
	// Most recent first; payer is relative to the caller.
	if entries[0]["date"] != "2026-08-21" || entries[0]["payer"] != "partner" {
		t.Errorf("entries[0] = %v", entries[0])
	}
	if entries[1]["payer"] != "you" {
		t.Errorf("entries[1] = %v", entries[1])
	}
}

func TestCategoryTools(t *testing.T) {
	inv := newTestInvocation(t)
	r := NewDefault()

	t.Run("empty table returns defaults", func(t *testing.T) {
		result := execute(t, r, inv, "list_categories", `{}`)
		names, _ := result["categories"].([]string)
		if len(names) == 0 || names[0] != "clothing" {
			t.Errorf("categories = %v", names)
		}
	})

	t.Run("create then list", func(t *testing.T) {
		result := execute(t, r, inv, "create_category", `{"name": "  Petcare "}`)
		if result["name"] != "petcare" || result["message"] != "Category 'petcare' created." {
			t.Errorf("result = %#v", result)
		}

		again := execute(t, r, inv, "create_category", `{"name": "petcare"}`)
		if again["message"] != "Category 'petcare' already exists." {
			t.Errorf("result = %#v", again)
		}

		listed := execute(t, r, inv, "list_categories", `{}`)
		names, _ := listed["categories"].([]string)
		if len(names) != 1 || names[0] != "petcare" {
			t.Errorf("categories = %v", names)
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		result := execute(t, r, inv, "create_category", `{"name": "   "}`)
		if result["error"] != "Category name cannot be empty." {
			t.Errorf("result = %#v", result)
		}
	})
}
