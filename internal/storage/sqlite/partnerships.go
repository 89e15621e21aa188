package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finbot/internal/models"
)

// Partnership returns the partnership containing userID, or nil if none exists.
func (s *SQLiteStore) Partnership(ctx context.Context, userID int64) (*models.Partnership, error) {
	var (
		p         models.Partnership
		id        string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_a_telegram_id, user_b_telegram_id, default_currency, created_at
		 FROM partnerships
		 WHERE user_a_telegram_id = ? OR user_b_telegram_id = ?
		 LIMIT 1`,
		userID, userID,
	).Scan(&id, &p.UserATelegramID, &p.UserBTelegramID, &p.DefaultCurrency, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query partnership: %w", err)
	}

	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse partnership ID: %w", err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &p, nil
}

// CreatePartnership links two users. If either user already belongs to a
// partnership, the existing one is returned unchanged.
func (s *SQLiteStore) CreatePartnership(ctx context.Context, userA, userB int64, currency string) (*models.Partnership, bool, error) {
	for _, id := range []int64{userA, userB} {
		existing, err := s.Partnership(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	p := &models.Partnership{
		ID:              uuid.New(),
		UserATelegramID: userA,
		UserBTelegramID: userB,
		DefaultCurrency: currency,
		CreatedAt:       time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO partnerships (id, user_a_telegram_id, user_b_telegram_id, default_currency, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID.String(), p.UserATelegramID, p.UserBTelegramID, p.DefaultCurrency,
		p.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert partnership: %w", err)
	}
	return p, true, nil
}
