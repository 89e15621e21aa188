package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Categories returns all category names, sorted.
func (s *SQLiteStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return names, nil
}

// CreateCategory inserts a category, lowercasing the name first.
// Returns the stored name and whether a new row was created.
func (s *SQLiteStore) CreateCategory(ctx context.Context, name string) (string, bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "", false, fmt.Errorf("category name cannot be empty")
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO categories (name, created_at) VALUES (?, ?)",
		normalized, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return normalized, n > 0, nil
}

// RenameCategory renames a category and retargets every ledger row that
// referenced the old name. The rename is refused if the old name does not
// exist or the new name is already taken.
func (s *SQLiteStore) RenameCategory(ctx context.Context, oldName, newName string) (bool, int, error) {
	oldNorm := strings.ToLower(strings.TrimSpace(oldName))
	newNorm := strings.ToLower(strings.TrimSpace(newName))
	if oldNorm == "" || newNorm == "" || oldNorm == newNorm {
		return false, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE name = ?", oldNorm,
	).Scan(&exists); err != nil {
		return false, 0, fmt.Errorf("failed to check old category: %w", err)
	}
	if exists == 0 {
		return false, 0, nil
	}

	var taken int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE name = ?", newNorm,
	).Scan(&taken); err != nil {
		return false, 0, fmt.Errorf("failed to check new category: %w", err)
	}
	if taken > 0 {
		return false, 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE categories SET name = ? WHERE name = ?", newNorm, oldNorm,
	); err != nil {
		return false, 0, fmt.Errorf("failed to rename category: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE ledger SET category = ? WHERE category = ?", newNorm, oldNorm,
	)
	if err != nil {
		return false, 0, fmt.Errorf("failed to retarget ledger rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit rename: %w", err)
	}
	return true, int(n), nil
}
