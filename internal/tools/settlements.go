package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finbot/internal/ledger"
	"finbot/internal/models"
)

const eventDateFormat = "2006-01-02"

// log_settlement records a direct payment from one partner to the other.
func logSettlementDefinition() Definition {
	return Definition{
		Schema: toolSchema("log_settlement",
			"Record a settlement payment between partners. A settlement is a direct payment from one partner to the other to reduce or clear the outstanding balance.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"amount": map[string]any{
						"type":        "number",
						"description": "Settlement amount as a positive number.",
					},
					"payer": map[string]any{
						"type":        "string",
						"enum":        []string{"user", "partner"},
						"description": "Who is paying: 'user' (message sender) or 'partner'.",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Optional description of the settlement.",
					},
					"event_date": map[string]any{
						"type":        "string",
						"description": "Date in YYYY-MM-DD format. Omit for today.",
					},
				},
				"required": []string{"amount", "payer"},
			}),
		Handler: logSettlement,
	}
}

type logSettlementArgs struct {
	Amount      *float64 `json:"amount"`
	Payer       string   `json:"payer"`
	Description string   `json:"description,omitempty"`
	EventDate   string   `json:"event_date,omitempty"`
}

func logSettlement(ctx context.Context, inv Invocation, args json.RawMessage) (map[string]any, error) {
	var a logSettlementArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return map[string]any{"error": "invalid log_settlement arguments: " + err.Error()}, nil
	}
	if a.Amount == nil {
		return map[string]any{"error": "Settlement amount is required."}, nil
	}

	partnership, partnerID, err := lookupPartner(ctx, inv)
	if err != nil {
		return nil, err
	}
	if partnership == nil {
		return map[string]any{"error": "No partnership found. Please set up a partnership first."}, nil
	}

	payerID := inv.UserID
	if a.Payer != "user" {
		payerID = partnerID
	}
	amount := decimal.NewFromFloat(*a.Amount)

	balance, err := deriveBalance(ctx, inv, partnerID)
	if err != nil {
		return nil, err
	}
	messages := ledger.ValidateSettlement(amount, payerID, inv.UserID, partnerID, &balance)
	hard, warnings := ledger.SplitWarnings(messages)
	if len(hard) > 0 {
		return map[string]any{"error": strings.Join(hard, " "), "warnings": warnings}, nil
	}

	eventDate := time.Now()
	if a.EventDate != "" {
		if parsed, err := time.Parse(eventDateFormat, a.EventDate); err == nil {
			eventDate = parsed
		}
	}

	description := a.Description
	if description == "" {
		description = "Settlement payment"
	}

	// The full amount moves from payer to the other partner, hence 100/0.
	entry := &models.LedgerEntry{
		RawInputID:      inv.RawInputID,
		EventType:       models.EventSettlement,
		Amount:          amount,
		Currency:        partnership.DefaultCurrency,
		PayerTelegramID: payerID,
		SplitPayerPct:   decimal.NewFromInt(100),
		SplitOtherPct:   decimal.Zero,
		EventDate:       eventDate,
		Description:     description,
	}
	if err := inv.Store.SaveLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("saving settlement: %w", err)
	}

	payerLabel := "You"
	if a.Payer != "user" {
		payerLabel = "Partner"
	}
	return map[string]any{
		"success":  true,
		"entry_id": entry.ID.String(),
		"description": fmt.Sprintf("%s paid %s %s as a settlement.",
			payerLabel, partnership.DefaultCurrency, amount),
		"warnings": warnings,
	}, nil
}

// validate_settlement checks a proposed settlement without committing it.
func validateSettlementDefinition() Definition {
	return Definition{
		Schema: toolSchema("validate_settlement",
			"Check whether a proposed settlement is valid before committing it. Returns validation errors and warnings.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"amount": map[string]any{
						"type":        "number",
						"description": "Settlement amount to validate.",
					},
					"payer": map[string]any{
						"type":        "string",
						"enum":        []string{"user", "partner"},
						"description": "Who is paying: 'user' or 'partner'.",
					},
				},
				"required": []string{"amount", "payer"},
			}),
		Handler: validateSettlement,
	}
}

func validateSettlement(ctx context.Context, inv Invocation, args json.RawMessage) (map[string]any, error) {
	var a logSettlementArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return map[string]any{"error": "invalid validate_settlement arguments: " + err.Error()}, nil
	}
	if a.Amount == nil {
		return map[string]any{"error": "Settlement amount is required."}, nil
	}

	partnership, partnerID, err := lookupPartner(ctx, inv)
	if err != nil {
		return nil, err
	}
	if partnership == nil {
		return map[string]any{"error": "No partnership found."}, nil
	}

	payerID := inv.UserID
	if a.Payer != "user" {
		payerID = partnerID
	}
	amount := decimal.NewFromFloat(*a.Amount)

	balance, err := deriveBalance(ctx, inv, partnerID)
	if err != nil {
		return nil, err
	}
	messages := ledger.ValidateSettlement(amount, payerID, inv.UserID, partnerID, &balance)
	hard, warnings := ledger.SplitWarnings(messages)

	return map[string]any{
		"valid":           len(hard) == 0,
		"errors":          hard,
		"warnings":        warnings,
		"current_balance": balance.String(),
	}, nil
}

// lookupPartner resolves the caller's partnership and partner ID.
// A nil partnership with nil error means the user has no partnership.
func lookupPartner(ctx context.Context, inv Invocation) (*models.Partnership, int64, error) {
	partnership, err := inv.Store.Partnership(ctx, inv.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("looking up partnership: %w", err)
	}
	if partnership == nil {
		return nil, 0, nil
	}
	return partnership, partnership.PartnerID(inv.UserID), nil
}

func deriveBalance(ctx context.Context, inv Invocation, partnerID int64) (decimal.Decimal, error) {
	entries, err := inv.Store.ActiveEntries(ctx, inv.UserID, partnerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading ledger entries: %w", err)
	}
	return ledger.Balance(entries, inv.UserID, partnerID), nil
}
