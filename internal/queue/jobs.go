package queue

import (
	"encoding/json"
	"time"

	"accountd/internal/domain"
)

const JobTypeSendPasswordResetEmail = "sendPasswordResetEmail"

// Job is the wire format of a queued message.
type Job struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Retry      int             `json:"retry"`
}

// UserSnapshot is the sanitized user record carried inside job payloads.
// Workers treat it as a hint and re-derive the live record by ID before
// acting on it.
type UserSnapshot struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	AvatarURL string `json:"avatar,omitempty"`
}

func NewUserSnapshot(u domain.User) UserSnapshot {
	return UserSnapshot{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
	}
}

type SendPasswordResetEmailData struct {
	User UserSnapshot `json:"user"`
}
