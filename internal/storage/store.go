// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/google/uuid"

	"finbot/internal/models"
)

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the agent layer, and lets tests substitute fakes.
type Store interface {
	// SaveRawInput persists an inbound message verbatim and returns the
	// new row's ID. Raw inputs are immutable.
	SaveRawInput(ctx context.Context, telegramUserID int64, rawText string) (uuid.UUID, error)

	// SaveLedgerEntry appends a validated entry to the ledger.
	// The entry's ID and CreatedAt are populated by the store.
	SaveLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error

	// ActiveEntries returns all non-superseded entries where either
	// partner is the payer, ordered by event date then creation time.
	ActiveEntries(ctx context.Context, userA, userB int64) ([]models.LedgerEntry, error)

	// FilteredEntries returns active entries matching the filter,
	// most recent first.
	FilteredEntries(ctx context.Context, userA, userB int64, f models.EntryFilter) ([]models.LedgerEntry, error)

	// RecentEntries returns the most recent active entries, up to limit.
	RecentEntries(ctx context.Context, userA, userB int64, limit int) ([]models.LedgerEntry, error)

	// CategoryTotals aggregates active entries matching the filter by
	// category, largest total first.
	CategoryTotals(ctx context.Context, userA, userB int64, f models.EntryFilter) ([]models.CategoryTotal, error)

	// Partnership returns the partnership containing userID, or nil if
	// the user has none.
	Partnership(ctx context.Context, userID int64) (*models.Partnership, error)

	// CreatePartnership links two users. If either user already belongs
	// to a partnership, the existing one is returned with created=false.
	CreatePartnership(ctx context.Context, userA, userB int64, currency string) (p *models.Partnership, created bool, err error)

	// Categories returns all category names, sorted.
	Categories(ctx context.Context) ([]string, error)

	// CreateCategory inserts a category (name is lowercased). Returns the
	// stored name and whether a new row was created.
	CreateCategory(ctx context.Context, name string) (stored string, created bool, err error)

	// RenameCategory renames a category and retargets all ledger rows
	// that referenced the old name. Returns whether the rename happened
	// and how many ledger rows were updated.
	RenameCategory(ctx context.Context, oldName, newName string) (renamed bool, ledgerRows int, err error)

	// LogLLMCall records an LLM invocation.
	LogLLMCall(ctx context.Context, call *models.LLMCall) error

	// Close releases any resources held by the store.
	Close() error
}
