package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finbot/internal/models"
)

const dateFormat = "2006-01-02"

// SaveRawInput persists an inbound message verbatim.
func (s *SQLiteStore) SaveRawInput(ctx context.Context, telegramUserID int64, rawText string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO raw_inputs (id, telegram_user_id, raw_text, created_at) VALUES (?, ?, ?, ?)",
		id.String(), telegramUserID, rawText, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert raw input: %w", err)
	}
	return id, nil
}

// SaveLedgerEntry appends an entry to the ledger.
func (s *SQLiteStore) SaveLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var category, description any
	if entry.Category != "" {
		category = entry.Category
	}
	if entry.Description != "" {
		description = entry.Description
	}
	var superseded any
	if entry.SupersededBy != nil {
		superseded = entry.SupersededBy.String()
	}

	splitPayer, _ := entry.SplitPayerPct.Float64()
	splitOther, _ := entry.SplitOtherPct.Float64()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger
		 (id, raw_input_id, event_type, amount, currency, category, payer_telegram_id,
		  split_payer_pct, split_other_pct, event_date, description, created_at, superseded_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.RawInputID.String(), entry.EventType,
		entry.Amount.String(), entry.Currency, category, entry.PayerTelegramID,
		splitPayer, splitOther, entry.EventDate.Format(dateFormat),
		description, entry.CreatedAt.Format(time.RFC3339Nano), superseded,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

const entryColumns = `id, raw_input_id, event_type, amount, currency, category,
	payer_telegram_id, split_payer_pct, split_other_pct, event_date, description,
	created_at, superseded_by`

// ActiveEntries returns all non-superseded entries involving either partner
// as the payer, ordered by event date then creation time.
func (s *SQLiteStore) ActiveEntries(ctx context.Context, userA, userB int64) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+` FROM ledger
		 WHERE superseded_by IS NULL AND payer_telegram_id IN (?, ?)
		 ORDER BY event_date, created_at`,
		userA, userB,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// FilteredEntries returns active entries matching the filter, most recent first.
func (s *SQLiteStore) FilteredEntries(ctx context.Context, userA, userB int64, f models.EntryFilter) ([]models.LedgerEntry, error) {
	query, args := filterQuery(userA, userB, f)
	query += " ORDER BY event_date DESC, created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filtered entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// RecentEntries returns the most recent active entries, up to limit.
func (s *SQLiteStore) RecentEntries(ctx context.Context, userA, userB int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+` FROM ledger
		 WHERE superseded_by IS NULL AND payer_telegram_id IN (?, ?)
		 ORDER BY event_date DESC, created_at DESC LIMIT ?`,
		userA, userB, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// CategoryTotals aggregates active entries matching the filter by category.
// Aggregation happens in Go so amounts keep exact decimal arithmetic.
func (s *SQLiteStore) CategoryTotals(ctx context.Context, userA, userB int64, f models.EntryFilter) ([]models.CategoryTotal, error) {
	entries, err := s.FilteredEntries(ctx, userA, userB, f)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*models.CategoryTotal)
	var order []string
	for _, e := range entries {
		cat := e.Category
		if cat == "" {
			cat = "uncategorized"
		}
		t, ok := totals[cat]
		if !ok {
			t = &models.CategoryTotal{Category: cat}
			totals[cat] = t
			order = append(order, cat)
		}
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}

	result := make([]models.CategoryTotal, 0, len(order))
	for _, cat := range order {
		result = append(result, *totals[cat])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Total.GreaterThan(result[j].Total)
	})
	return result, nil
}

func filterQuery(userA, userB int64, f models.EntryFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT " + entryColumns + ` FROM ledger
		 WHERE superseded_by IS NULL AND payer_telegram_id IN (?, ?)`)
	args := []any{userA, userB}

	if f.Category != "" {
		sb.WriteString(" AND LOWER(category) = LOWER(?)")
		args = append(args, f.Category)
	}
	if f.DateFrom != nil {
		sb.WriteString(" AND event_date >= ?")
		args = append(args, f.DateFrom.Format(dateFormat))
	}
	if f.DateTo != nil {
		sb.WriteString(" AND event_date <= ?")
		args = append(args, f.DateTo.Format(dateFormat))
	}
	if f.EventType != "" {
		sb.WriteString(" AND event_type = ?")
		args = append(args, f.EventType)
	}
	return sb.String(), args
}

func scanEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	for rows.Next() {
		var (
			e                     models.LedgerEntry
			id, rawID, amount     string
			category, description sql.NullString
			superseded            sql.NullString
			splitPayer, splitOther float64
			eventDate, createdAt  string
		)
		if err := rows.Scan(&id, &rawID, &e.EventType, &amount, &e.Currency,
			&category, &e.PayerTelegramID, &splitPayer, &splitOther,
			&eventDate, &description, &createdAt, &superseded); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		var err error
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse entry ID: %w", err)
		}
		if e.RawInputID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("failed to parse raw input ID: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
		}
		e.SplitPayerPct = decimal.NewFromFloat(splitPayer)
		e.SplitOtherPct = decimal.NewFromFloat(splitOther)
		if e.EventDate, err = time.Parse(dateFormat, eventDate); err != nil {
			return nil, fmt.Errorf("failed to parse event date %q: %w", eventDate, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
		}
		e.Category = category.String
		e.Description = description.String
		if superseded.Valid {
			sid, err := uuid.Parse(superseded.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse superseded_by: %w", err)
			}
			e.SupersededBy = &sid
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}
