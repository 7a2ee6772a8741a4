package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"accountd/internal/mail"
	"accountd/internal/queue"
	"accountd/internal/service"
)

// PasswordResetEmailer executes the sendPasswordResetEmail job: it loads
// the live account behind the enqueued snapshot, mints the reset token, and
// delivers the email carrying the reset link. The token is created here, in
// the process that sends it, so a job that never runs leaves no token
// behind.
type PasswordResetEmailer struct {
	Users   service.UsersStore
	Resets  *service.PasswordResetService
	Sender  mail.Sender
	BaseURL *url.URL
	Logger  *slog.Logger
}

func (h *PasswordResetEmailer) Handle(ctx context.Context, data json.RawMessage) error {
	var payload queue.SendPasswordResetEmailData
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if payload.User.ID == "" {
		return fmt.Errorf("payload carries no user")
	}

	// The snapshot may be stale by the time the job runs; the live record
	// decides the recipient address and whether the account still exists.
	user, err := h.Users.GetUserByID(ctx, payload.User.ID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", payload.User.ID, err)
	}

	token, err := h.Resets.GenerateResetToken(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	msg := mail.PasswordReset(user.Email, user.FirstName, h.resetURL(user.ID, token))
	if err := h.Sender.Send(msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	h.Logger.Info("password reset email sent", "user_id", user.ID)
	return nil
}

func (h *PasswordResetEmailer) resetURL(userID, token string) string {
	u := h.BaseURL.JoinPath("password-reset", userID)
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Handlers maps job types to their executors for the queue worker.
func Handlers(resetEmailer *PasswordResetEmailer) map[string]queue.Handler {
	return map[string]queue.Handler{
		queue.JobTypeSendPasswordResetEmail: resetEmailer.Handle,
	}
}
