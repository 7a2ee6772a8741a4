package postgres

import (
	"context"
	"errors"
	"fmt"

	"accountd/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userColumns = `
	u.id, u.email, u.first_name, u.last_name, u.avatar_url, u.api_key,
	u.created_at, u.updated_at, prt.issued_at
`

const userJoin = `
	users u
	LEFT JOIN password_reset_tokens prt ON prt.user_id = u.id
`

func (s *UsersStore) CreateUser(ctx context.Context, email, firstName, lastName, avatarURL, passwordHash, apiKey string) (domain.User, error) {
	const q = `
		INSERT INTO users (email, first_name, last_name, avatar_url, password_hash, api_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, email, first_name, last_name, avatar_url, api_key, created_at, updated_at
	`

	var (
		u         domain.User
		idUUID    pgtype.UUID
		firstText pgtype.Text
		lastText  pgtype.Text
		avatar    pgtype.Text
	)
	err := s.pool.QueryRow(ctx, q,
		email,
		nullIfEmpty(firstName),
		nullIfEmpty(lastName),
		nullIfEmpty(avatarURL),
		passwordHash,
		apiKey,
	).Scan(
		&idUUID,
		&u.Email,
		&firstText,
		&lastText,
		&avatar,
		&u.APIKey,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" && pgerr.ConstraintName == "users_email_uq" {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	u.ID = uuidOrEmpty(idUUID)
	u.FirstName = textOrEmpty(firstText)
	u.LastName = textOrEmpty(lastText)
	u.AvatarURL = textOrEmpty(avatar)
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM ` + userJoin + ` WHERE u.id = $1`

	u, err := s.scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return domain.User{}, mapLookupError(err, "get user by id")
	}
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithSecrets, error) {
	q := `SELECT ` + userColumns + `, u.password_hash FROM ` + userJoin + ` WHERE lower(u.email) = lower($1)`

	var (
		u         domain.UserWithSecrets
		idUUID    pgtype.UUID
		firstText pgtype.Text
		lastText  pgtype.Text
		avatar    pgtype.Text
		resetAt   pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, q, email).Scan(
		&idUUID,
		&u.Email,
		&firstText,
		&lastText,
		&avatar,
		&u.APIKey,
		&u.CreatedAt,
		&u.UpdatedAt,
		&resetAt,
		&u.PasswordHash,
	)
	if err != nil {
		return domain.UserWithSecrets{}, mapLookupError(err, "get user by email")
	}

	u.ID = uuidOrEmpty(idUUID)
	u.FirstName = textOrEmpty(firstText)
	u.LastName = textOrEmpty(lastText)
	u.AvatarURL = textOrEmpty(avatar)
	u.PasswordResetIssuedAt = timestamptzPtr(resetAt)
	return u, nil
}

func (s *UsersStore) GetUserByAPIKey(ctx context.Context, apiKey string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM ` + userJoin + ` WHERE u.api_key = $1`

	u, err := s.scanUser(s.pool.QueryRow(ctx, q, apiKey))
	if err != nil {
		return domain.User{}, mapLookupError(err, "get user by api key")
	}
	return u, nil
}

// UpdateProfile touches names and avatar only. The api key column is
// deliberately absent: it is immutable after creation.
func (s *UsersStore) UpdateProfile(ctx context.Context, userID, firstName, lastName, avatarURL string) (domain.User, error) {
	const q = `
		UPDATE users
		SET first_name = $2, last_name = $3, avatar_url = $4, updated_at = now()
		WHERE id = $1
		RETURNING id
	`

	var idUUID pgtype.UUID
	err := s.pool.QueryRow(ctx, q, userID,
		nullIfEmpty(firstName),
		nullIfEmpty(lastName),
		nullIfEmpty(avatarURL),
	).Scan(&idUUID)
	if err != nil {
		return domain.User{}, mapLookupError(err, "update profile")
	}

	return s.GetUserByID(ctx, uuidOrEmpty(idUUID))
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) scanUser(row pgx.Row) (domain.User, error) {
	var (
		u         domain.User
		idUUID    pgtype.UUID
		firstText pgtype.Text
		lastText  pgtype.Text
		avatar    pgtype.Text
		resetAt   pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&u.Email,
		&firstText,
		&lastText,
		&avatar,
		&u.APIKey,
		&u.CreatedAt,
		&u.UpdatedAt,
		&resetAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.ID = uuidOrEmpty(idUUID)
	u.FirstName = textOrEmpty(firstText)
	u.LastName = textOrEmpty(lastText)
	u.AvatarURL = textOrEmpty(avatar)
	u.PasswordResetIssuedAt = timestamptzPtr(resetAt)
	return u, nil
}

// mapLookupError folds "no rows" and malformed uuid input into ErrNotFound so
// callers can treat both as a missing record.
func mapLookupError(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "22P02" {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
