// Package models defines the core data records shared across the application.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types recorded in the ledger.
const (
	EventExpense    = "expense"
	EventSettlement = "settlement"
	EventCorrection = "correction"
)

// RawInput is an immutable record of an inbound user message. Rows are
// never modified or deleted; every ledger entry references one.
type RawInput struct {
	ID             uuid.UUID
	TelegramUserID int64
	RawText        string
	CreatedAt      time.Time
}

// LedgerEntry is a single row of the append-only financial ledger.
// Entries are never updated in place; a correction supersedes the
// original via SupersededBy.
type LedgerEntry struct {
	ID              uuid.UUID
	RawInputID      uuid.UUID
	EventType       string
	Amount          decimal.Decimal
	Currency        string
	Category        string // empty means uncategorized
	PayerTelegramID int64
	SplitPayerPct   decimal.Decimal
	SplitOtherPct   decimal.Decimal
	EventDate       time.Time
	Description     string
	SupersededBy    *uuid.UUID
	CreatedAt       time.Time
}

// EntryFilter narrows ledger queries. Zero values mean "no filter".
type EntryFilter struct {
	Category  string
	DateFrom  *time.Time
	DateTo    *time.Time
	EventType string
}

// CategoryTotal is one row of a per-category aggregation.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// Partnership links exactly two Telegram users as finance partners.
type Partnership struct {
	ID              uuid.UUID
	UserATelegramID int64
	UserBTelegramID int64
	DefaultCurrency string
	CreatedAt       time.Time
}

// PartnerID returns the other partner's Telegram user ID.
func (p *Partnership) PartnerID(userID int64) int64 {
	if p.UserATelegramID == userID {
		return p.UserBTelegramID
	}
	return p.UserATelegramID
}

// LLMCall records one LLM invocation for cost and latency tracking.
type LLMCall struct {
	ID             uuid.UUID
	Provider       string
	Model          string
	InputTokens    int
	OutputTokens   int
	LatencyMS      int64
	IsFallback     bool
	FallbackReason string
	CostUSD        *decimal.Decimal
	CreatedAt      time.Time
}
