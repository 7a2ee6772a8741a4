package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accountd/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PasswordResetStore struct {
	pool *pgxpool.Pool
}

func NewPasswordResetStore(pool *pgxpool.Pool) *PasswordResetStore {
	return &PasswordResetStore{pool: pool}
}

// UpsertResetToken stores the user's reset token, overwriting any prior one.
// Last write wins when resets race; the table holds one row per user.
func (s *PasswordResetStore) UpsertResetToken(ctx context.Context, userID, token string, issuedAt time.Time) error {
	const q = `
		INSERT INTO password_reset_tokens (user_id, token, issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token, issued_at = EXCLUDED.issued_at
	`
	if _, err := s.pool.Exec(ctx, q, userID, token, issuedAt); err != nil {
		return fmt.Errorf("upsert reset token: %w", err)
	}
	return nil
}

func (s *PasswordResetStore) GetResetToken(ctx context.Context, userID string) (domain.PasswordResetToken, error) {
	const q = `
		SELECT user_id, token, issued_at
		FROM password_reset_tokens
		WHERE user_id = $1
	`

	var (
		t          domain.PasswordResetToken
		userIDUUID pgtype.UUID
	)
	err := s.pool.QueryRow(ctx, q, userID).Scan(&userIDUUID, &t.Value, &t.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PasswordResetToken{}, domain.ErrNotFound
		}
		return domain.PasswordResetToken{}, fmt.Errorf("get reset token: %w", err)
	}

	t.UserID = uuidOrEmpty(userIDUUID)
	return t, nil
}

func (s *PasswordResetStore) DeleteResetToken(ctx context.Context, userID string) error {
	const q = `DELETE FROM password_reset_tokens WHERE user_id = $1`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}
