package domain

import "time"

// User is the sanitized view of an account: everything a client may see.
// Secret material (password hash, session tokens, the reset token value)
// lives on UserWithSecrets and never crosses the HTTP boundary.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
	APIKey    string
	CreatedAt time.Time
	UpdatedAt time.Time

	// PasswordResetIssuedAt is set when an outstanding reset token exists.
	// Only the issuance time is exposed, never the token value.
	PasswordResetIssuedAt *time.Time
}

type UserWithSecrets struct {
	User
	PasswordHash string
}

// PasswordResetToken authorizes one password change within its TTL.
// A user holds at most one; issuing a new token overwrites the prior one.
type PasswordResetToken struct {
	UserID   string
	Value    string
	IssuedAt time.Time
}
