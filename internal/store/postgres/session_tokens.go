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

type SessionTokensStore struct {
	pool *pgxpool.Pool
}

func NewSessionTokensStore(pool *pgxpool.Pool) *SessionTokensStore {
	return &SessionTokensStore{pool: pool}
}

func (s *SessionTokensStore) IssueSessionToken(ctx context.Context, userID, token string, issuedAt time.Time) error {
	const q = `
		INSERT INTO session_tokens (token, user_id, issued_at)
		VALUES ($1, $2, $3)
	`
	if _, err := s.pool.Exec(ctx, q, token, userID, issuedAt); err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}
	return nil
}

// ConsumeSessionToken redeems a token in a single round trip: the DELETE
// either wins and returns the owning user id, or the token was already gone.
// Two concurrent redemptions of the same value cannot both succeed.
func (s *SessionTokensStore) ConsumeSessionToken(ctx context.Context, token string) (string, error) {
	const q = `
		DELETE FROM session_tokens
		WHERE token = $1
		RETURNING user_id
	`

	var userIDUUID pgtype.UUID
	err := s.pool.QueryRow(ctx, q, token).Scan(&userIDUUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("consume session token: %w", err)
	}

	return uuidOrEmpty(userIDUUID), nil
}

// ClearSessionTokens revokes every outstanding remember-me token for a user,
// used on logout.
func (s *SessionTokensStore) ClearSessionTokens(ctx context.Context, userID string) error {
	const q = `DELETE FROM session_tokens WHERE user_id = $1`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("clear session tokens: %w", err)
	}
	return nil
}
