package service

import (
	"context"
	"strings"
	"time"

	"accountd/internal/auth"
	"accountd/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, email, firstName, lastName, avatarURL, passwordHash, apiKey string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithSecrets, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (domain.User, error)
	UpdateProfile(ctx context.Context, userID, firstName, lastName, avatarURL string) (domain.User, error)
	SetPasswordHash(ctx context.Context, userID, passwordHash string) error
}

// AccountService owns account creation and profile changes: it is the only
// component that writes the password hash outside the reset flow, and the
// only place an API key is ever minted.
type AccountService struct {
	Users  UsersStore
	Hasher auth.Hasher
	Now    func() time.Time
}

type RegisterParams struct {
	Email                string
	FirstName            string
	LastName             string
	AvatarURL            string
	Password             string
	PasswordConfirmation string
}

func (s *AccountService) Register(ctx context.Context, p RegisterParams) (domain.User, error) {
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))

	fields := map[string]string{}
	if p.Email == "" {
		fields["email"] = "required"
	}
	validateNewPassword(p.Password, p.PasswordConfirmation, fields)
	if len(fields) > 0 {
		return domain.User{}, domain.NewValidationError(fields)
	}

	passwordHash, err := s.Hasher.Hash(p.Password)
	if err != nil {
		return domain.User{}, err
	}

	// The API key is generated exactly once, here. No later operation
	// accepts one from a caller.
	apiKey := auth.NewToken()

	return s.Users.CreateUser(ctx, p.Email, p.FirstName, p.LastName, p.AvatarURL, passwordHash, apiKey)
}

type UpdateProfileParams struct {
	FirstName            string
	LastName             string
	AvatarURL            string
	Password             string
	PasswordConfirmation string
}

// UpdateProfile applies profile changes. When no new password is supplied
// the stored hash is left untouched; when one is supplied it is validated
// and re-hashed exactly like at registration.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, p UpdateProfileParams) (domain.User, error) {
	if p.Password != "" || p.PasswordConfirmation != "" {
		fields := map[string]string{}
		validateNewPassword(p.Password, p.PasswordConfirmation, fields)
		if len(fields) > 0 {
			return domain.User{}, domain.NewValidationError(fields)
		}

		hash, err := s.Hasher.Hash(p.Password)
		if err != nil {
			return domain.User{}, err
		}
		if err := s.Users.SetPasswordHash(ctx, userID, hash); err != nil {
			return domain.User{}, err
		}
	}

	return s.Users.UpdateProfile(ctx, userID, p.FirstName, p.LastName, p.AvatarURL)
}

// ChangePassword re-hashes and persists without a confirmation check. Only
// the password-reset flow calls this; the confirmation is enforced there,
// at the edge.
func (s *AccountService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.Users.SetPasswordHash(ctx, userID, hash)
}

func validateNewPassword(password, confirmation string, fields map[string]string) {
	if password == "" {
		fields["password"] = "required"
		return
	}
	if password != confirmation {
		fields["password"] = "mismatch"
	}
}
