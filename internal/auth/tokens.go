package auth

import "github.com/google/uuid"

// NewToken mints a random credential value. Session tokens, password-reset
// tokens and API keys all share this format: a v4 UUID string, unique per
// issue and infeasible to guess.
func NewToken() string {
	return uuid.NewString()
}
