// Package agent implements the conversational state machine that turns
// free-text Telegram messages into validated ledger entries. The
// orchestrator drives LLM extraction, asks clarification questions for
// missing fields, and commits confirmed expenses to storage.
package agent

import (
	"sync"

	"github.com/google/uuid"

	"finbot/internal/tools"
)

// State is a position in the conversation state machine.
type State string

const (
	StateIdle       State = "idle"
	StateParsing    State = "parsing"
	StateValidating State = "validating"
	StateClarifying State = "clarifying"
	StateConfirming State = "confirming"
	StateCommitting State = "committing"
)

// Field names used for clarification questions. They match the JSON keys
// the extraction tool emits so answers can be merged back in.
const (
	FieldAmount        = "amount"
	FieldCategory      = "category"
	FieldPayer         = "payer"
	FieldSplitPayerPct = "split_payer_pct"
	FieldSplitOtherPct = "split_other_pct"
)

// RequiredExpenseFields must all be set before an expense can be
// committed.
var RequiredExpenseFields = []string{
	FieldAmount,
	FieldCategory,
	FieldPayer,
	FieldSplitPayerPct,
	FieldSplitOtherPct,
}

// PendingExpense is a single expense being assembled through the
// conversation flow. Optional fields are pointers so "not yet known" is
// distinguishable from a zero value; the JSON tags line up with both the
// extraction tool output and the web app payload.
type PendingExpense struct {
	Amount        *float64 `json:"amount"`
	Currency      string   `json:"currency"`
	Category      *string  `json:"category"`
	Description   *string  `json:"description"`
	Payer         *string  `json:"payer"`
	SplitPayerPct *float64 `json:"split_payer_pct"`
	SplitOtherPct *float64 `json:"split_other_pct"`
	EventDate     *string  `json:"event_date"`
	Notes         []string `json:"notes,omitempty"`
}

// NewPendingExpense converts one extracted expense, applying the default
// currency when the model left it out.
func NewPendingExpense(p tools.ParsedExpense, defaultCurrency string) PendingExpense {
	out := PendingExpense{
		Amount:        p.Amount,
		Currency:      p.Currency,
		SplitPayerPct: p.SplitPayerPct,
		SplitOtherPct: p.SplitOtherPct,
	}
	if out.Currency == "" {
		out.Currency = defaultCurrency
	}
	if p.Category != "" {
		out.Category = &p.Category
	}
	if p.Description != "" {
		out.Description = &p.Description
	}
	if p.Payer != "" {
		out.Payer = &p.Payer
	}
	if p.EventDate != "" {
		out.EventDate = &p.EventDate
	}
	if p.Notes != "" {
		out.Notes = append(out.Notes, p.Notes)
	}
	return out
}

// MissingFields returns the required fields that are still unset, in
// clarification order.
func (e *PendingExpense) MissingFields() []string {
	var missing []string
	if e.Amount == nil {
		missing = append(missing, FieldAmount)
	}
	if e.Category == nil {
		missing = append(missing, FieldCategory)
	}
	if e.Payer == nil {
		missing = append(missing, FieldPayer)
	}
	if e.SplitPayerPct == nil {
		missing = append(missing, FieldSplitPayerPct)
	}
	if e.SplitOtherPct == nil {
		missing = append(missing, FieldSplitOtherPct)
	}
	return missing
}

// IsComplete reports whether every required field has a value.
func (e *PendingExpense) IsComplete() bool {
	return len(e.MissingFields()) == 0
}

// Context is the full per-user conversation context carried between
// messages.
type Context struct {
	State State

	// RawInputID references the raw_inputs row for the original message.
	RawInputID uuid.UUID

	// PendingExpenses may still have missing fields while clarifying.
	PendingExpenses []PendingExpense

	// ClarificationField is the field currently being asked about.
	ClarificationField string

	// ConfirmationMessageID is the Telegram message carrying the
	// confirm/edit/cancel keyboard, so callbacks can edit it in place.
	ConfirmationMessageID int

	// OriginalText is the raw text that started this round.
	OriginalText string

	// IsSettlement marks the pending items as settlements.
	IsSettlement bool

	// RenamingCategory is set by the /categories rename flow. While
	// non-empty, the next text message is treated as the new name.
	RenamingCategory string
}

// AllComplete reports whether every pending expense is committable.
func (c *Context) AllComplete() bool {
	for i := range c.PendingExpenses {
		if !c.PendingExpenses[i].IsComplete() {
			return false
		}
	}
	return true
}

// FirstMissing returns the index and field name of the first gap, or
// ok=false when everything is complete.
func (c *Context) FirstMissing() (index int, field string, ok bool) {
	for i := range c.PendingExpenses {
		if missing := c.PendingExpenses[i].MissingFields(); len(missing) > 0 {
			return i, missing[0], true
		}
	}
	return 0, "", false
}

// Store is an in-memory conversation store keyed by Telegram user ID.
// The bot dispatches handlers on separate goroutines, so access is
// mutex-guarded. If the process restarts, users simply re-send their
// message.
type Store struct {
	mu    sync.Mutex
	byUID map[int64]*Context
}

// NewStore returns an empty conversation store.
func NewStore() *Store {
	return &Store{byUID: make(map[int64]*Context)}
}

// Get returns the context for userID, creating a fresh idle one if absent.
func (s *Store) Get(userID int64) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.byUID[userID]
	if !ok {
		ctx = &Context{State: StateIdle}
		s.byUID[userID] = ctx
	}
	return ctx
}

// Set stores ctx for userID.
func (s *Store) Set(userID int64, ctx *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUID[userID] = ctx
}

// Clear removes the context for userID, resetting them to idle.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUID, userID)
}

// Has reports whether userID has an active context.
func (s *Store) Has(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byUID[userID]
	return ok
}
