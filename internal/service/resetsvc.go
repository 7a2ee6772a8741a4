package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"accountd/internal/auth"
	"accountd/internal/domain"
	"accountd/internal/queue"
)

// ResetTokenTTL is how long a reset token stays redeemable. Fixed, not
// configurable: tokens issued longer ago than this are rejected as expired.
const ResetTokenTTL = 2 * time.Hour

type PasswordResetStore interface {
	UpsertResetToken(ctx context.Context, userID, token string, issuedAt time.Time) error
	GetResetToken(ctx context.Context, userID string) (domain.PasswordResetToken, error)
	DeleteResetToken(ctx context.Context, userID string) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, data any) error
}

// PasswordResetService orchestrates the reset workflow: the request side
// enqueues an email job carrying a user snapshot; the worker side mints the
// token; redemption validates the token and commits the new password.
type PasswordResetService struct {
	Users    UsersStore
	Resets   PasswordResetStore
	Accounts *AccountService
	Queue    Enqueuer
	Now      func() time.Time
}

func (s *PasswordResetService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RequestReset looks up the account and enqueues the reset email job. An
// unknown email is reported to the caller: the system deliberately reveals
// whether an account exists here, unlike at login.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.NewValidationError(map[string]string{"email": "required"})
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	data := queue.SendPasswordResetEmailData{User: queue.NewUserSnapshot(u.User)}
	if err := s.Queue.Enqueue(ctx, queue.JobTypeSendPasswordResetEmail, data); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrQueueUnavailable, err)
	}
	return nil
}

// GenerateResetToken mints a reset token for a user, overwriting any prior
// one. The worker calls this while executing the email job, so the token is
// created by the process that sends it.
func (s *PasswordResetService) GenerateResetToken(ctx context.Context, userID string) (string, error) {
	token := auth.NewToken()
	if err := s.Resets.UpsertResetToken(ctx, userID, token, s.now()); err != nil {
		return "", err
	}
	return token, nil
}

// Redeem validates a presented token and commits the new password. The
// stored hash is only touched after every check passes.
func (s *PasswordResetService) Redeem(ctx context.Context, userID, token, newPassword, newPasswordConfirmation string) (domain.User, error) {
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	if token == "" {
		return domain.User{}, domain.NewValidationError(map[string]string{"token": "required"})
	}

	stored, err := s.Resets.GetResetToken(ctx, u.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrResetTokenInvalid
		}
		return domain.User{}, err
	}
	if stored.Value != token {
		return domain.User{}, domain.ErrResetTokenInvalid
	}
	if s.now().Sub(stored.IssuedAt) > ResetTokenTTL {
		return domain.User{}, domain.ErrResetTokenExpired
	}

	if newPassword == "" {
		return domain.User{}, domain.NewValidationError(map[string]string{"password": "required"})
	}
	if newPassword != newPasswordConfirmation {
		return domain.User{}, domain.NewValidationError(map[string]string{"passwordConfirmation": "invalid"})
	}

	if err := s.Accounts.ChangePassword(ctx, u.ID, newPassword); err != nil {
		return domain.User{}, err
	}

	// The token authorized exactly one change; drop it so a replay fails.
	if err := s.Resets.DeleteResetToken(ctx, u.ID); err != nil {
		return domain.User{}, err
	}

	u.PasswordResetIssuedAt = nil
	return u, nil
}
