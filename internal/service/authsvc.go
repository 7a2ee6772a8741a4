package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"accountd/internal/auth"
	"accountd/internal/domain"
)

type SessionTokensStore interface {
	IssueSessionToken(ctx context.Context, userID, token string, issuedAt time.Time) error
	ConsumeSessionToken(ctx context.Context, token string) (string, error)
	ClearSessionTokens(ctx context.Context, userID string) error
}

// AuthService resolves credentials to principals: password login,
// single-use remember-me tokens, and API-key Basic auth.
type AuthService struct {
	Users  UsersStore
	Tokens SessionTokensStore
	Hasher auth.Hasher
	Now    func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login verifies an email/password pair. Unknown email and wrong password
// are indistinguishable to the caller: both are ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(email)

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	ok, err := s.Hasher.Verify(u.PasswordHash, password)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	return u.User, nil
}

// IssueRememberToken mints a fresh single-use remember-me token for a user.
func (s *AuthService) IssueRememberToken(ctx context.Context, userID string) (string, error) {
	token := auth.NewToken()
	if err := s.Tokens.IssueSessionToken(ctx, userID, token, s.now()); err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeRememberToken redeems a remember-me token and rotates it: the
// presented token is gone after this call, and the returned replacement
// keeps the remembered state alive. ErrNotFound means the token was never
// issued or was already used.
func (s *AuthService) ConsumeRememberToken(ctx context.Context, token string) (domain.User, string, error) {
	userID, err := s.Tokens.ConsumeSessionToken(ctx, token)
	if err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, "", err
	}

	replacement, err := s.IssueRememberToken(ctx, userID)
	if err != nil {
		return domain.User{}, "", err
	}

	return u, replacement, nil
}

// Logout invalidates every remember-me token the user holds.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.Tokens.ClearSessionTokens(ctx, userID)
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Users.GetUserByID(ctx, userID)
}

// AuthenticateAPIKey implements the Basic-auth contract: the transmitted
// username and password must be the same value, and that value must be a
// real user's API key.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, username, password string) (domain.User, error) {
	if username == "" || username != password {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	u, err := s.Users.GetUserByAPIKey(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnknownAPIKey
		}
		return domain.User{}, err
	}
	return u, nil
}
