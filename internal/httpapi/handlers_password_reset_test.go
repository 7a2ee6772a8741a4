package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"accountd/internal/domain"
	"accountd/internal/service"
)

type stubResetsStore struct {
	t *testing.T

	upsertResetTokenFunc func(context.Context, string, string, time.Time) error
	getResetTokenFunc    func(context.Context, string) (domain.PasswordResetToken, error)
	deleteResetTokenFunc func(context.Context, string) error
}

func (s *stubResetsStore) UpsertResetToken(ctx context.Context, userID, token string, issuedAt time.Time) error {
	if s.upsertResetTokenFunc != nil {
		return s.upsertResetTokenFunc(ctx, userID, token, issuedAt)
	}
	s.t.Fatalf("UpsertResetToken called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubResetsStore) GetResetToken(ctx context.Context, userID string) (domain.PasswordResetToken, error) {
	if s.getResetTokenFunc != nil {
		return s.getResetTokenFunc(ctx, userID)
	}
	s.t.Fatalf("GetResetToken called unexpectedly")
	return domain.PasswordResetToken{}, errors.New("unexpected call")
}

func (s *stubResetsStore) DeleteResetToken(ctx context.Context, userID string) error {
	if s.deleteResetTokenFunc != nil {
		return s.deleteResetTokenFunc(ctx, userID)
	}
	s.t.Fatalf("DeleteResetToken called unexpectedly")
	return errors.New("unexpected call")
}

type stubEnqueuer struct {
	enqueueFunc func(context.Context, string, any) error
}

func (s *stubEnqueuer) Enqueue(ctx context.Context, jobType string, data any) error {
	if s.enqueueFunc != nil {
		return s.enqueueFunc(ctx, jobType, data)
	}
	return errors.New("unexpected call")
}

func TestPasswordResetRequest(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithSecrets, error) {
			if email != "player@example.com" {
				return domain.UserWithSecrets{}, domain.ErrNotFound
			}
			return domain.UserWithSecrets{User: domain.User{ID: "user-1", Email: email}}, nil
		},
	}

	enqueued := false
	a := &api{
		resetSvc: &service.PasswordResetService{
			Users: users,
			Queue: &stubEnqueuer{
				enqueueFunc: func(context.Context, string, any) error {
					enqueued = true
					return nil
				},
			},
		},
		loginLimiter: newLoginLimiter(),
	}

	req := httptest.NewRequest(http.MethodPost, "/password-reset", strings.NewReader(`{"email":"player@example.com"}`))
	rr := httptest.NewRecorder()

	a.handlePasswordResetRequest(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body %s", rr.Code, rr.Body.String())
	}
	if !enqueued {
		t.Fatalf("expected job enqueued")
	}

	var resp infoResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Info == "" {
		t.Fatalf("expected info message")
	}
}

func TestPasswordResetRequestUnknownEmail(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(context.Context, string) (domain.UserWithSecrets, error) {
			return domain.UserWithSecrets{}, domain.ErrNotFound
		},
	}
	a := &api{
		resetSvc:     &service.PasswordResetService{Users: users, Queue: &stubEnqueuer{}},
		loginLimiter: newLoginLimiter(),
	}

	req := httptest.NewRequest(http.MethodPost, "/password-reset", strings.NewReader(`{"email":"ghost@example.com"}`))
	rr := httptest.NewRecorder()

	a.handlePasswordResetRequest(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var resp errorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Fields["user"] != "not found" {
		t.Fatalf("unexpected fields: %v", resp.Fields)
	}
}

func TestPasswordResetRequestQueueDown(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithSecrets, error) {
			return domain.UserWithSecrets{User: domain.User{ID: "user-1", Email: email}}, nil
		},
	}
	a := &api{
		resetSvc: &service.PasswordResetService{
			Users: users,
			Queue: &stubEnqueuer{
				enqueueFunc: func(context.Context, string, any) error {
					return errors.New("connection refused")
				},
			},
		},
		loginLimiter: newLoginLimiter(),
	}

	req := httptest.NewRequest(http.MethodPost, "/password-reset", strings.NewReader(`{"email":"player@example.com"}`))
	rr := httptest.NewRecorder()

	a.handlePasswordResetRequest(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var resp errorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != "queue_unavailable" {
		t.Fatalf("unexpected error code: %s", resp.Error.Code)
	}
}

func redeemAPI(t *testing.T, issuedAt time.Time, now func() time.Time) *api {
	t.Helper()

	hasher := testHasher()
	users := &stubUsersStore{
		t: t,
		getUserByIDFunc: func(_ context.Context, id string) (domain.User, error) {
			if id != "user-1" {
				return domain.User{}, domain.ErrNotFound
			}
			return domain.User{ID: "user-1", Email: "player@example.com", PasswordResetIssuedAt: &issuedAt}, nil
		},
		setPasswordHashFunc: func(context.Context, string, string) error { return nil },
	}
	resets := &stubResetsStore{
		t: t,
		getResetTokenFunc: func(_ context.Context, userID string) (domain.PasswordResetToken, error) {
			return domain.PasswordResetToken{UserID: userID, Value: "reset-token", IssuedAt: issuedAt}, nil
		},
		deleteResetTokenFunc: func(context.Context, string) error { return nil },
	}

	return &api{
		resetSvc: &service.PasswordResetService{
			Users:    users,
			Resets:   resets,
			Accounts: &service.AccountService{Users: users, Hasher: hasher},
			Now:      now,
		},
	}
}

func TestPasswordResetRedeem(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	a := redeemAPI(t, issuedAt, func() time.Time { return issuedAt.Add(time.Hour) })

	body := `{"token":"reset-token","password":"new-secret","passwordConfirmation":"new-secret"}`
	req := httptest.NewRequest(http.MethodPut, "/password-reset/user-1", strings.NewReader(body))
	req.SetPathValue("id", "user-1")
	rr := httptest.NewRecorder()

	a.handlePasswordResetRedeem(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body %s", rr.Code, rr.Body.String())
	}

	var resp userResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "user-1" {
		t.Fatalf("unexpected user payload: %+v", resp)
	}
	if resp.PasswordResetIssuedAt != nil {
		t.Fatalf("redeemed user still reports an outstanding reset")
	}
}

func TestPasswordResetRedeemFieldErrors(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	cases := map[string]struct {
		userID string
		body   string
		now    time.Time
		field  string
		reason string
	}{
		"unknown user": {
			userID: "ghost",
			body:   `{"token":"reset-token","password":"p","passwordConfirmation":"p"}`,
			now:    issuedAt.Add(time.Hour),
			field:  "user",
			reason: "not found",
		},
		"wrong token": {
			userID: "user-1",
			body:   `{"token":"forged","password":"p","passwordConfirmation":"p"}`,
			now:    issuedAt.Add(time.Hour),
			field:  "token",
			reason: "invalid",
		},
		"expired token": {
			userID: "user-1",
			body:   `{"token":"reset-token","password":"p","passwordConfirmation":"p"}`,
			now:    issuedAt.Add(3 * time.Hour),
			field:  "token",
			reason: "expired",
		},
		"missing password": {
			userID: "user-1",
			body:   `{"token":"reset-token"}`,
			now:    issuedAt.Add(time.Hour),
			field:  "password",
			reason: "required",
		},
		"confirmation mismatch": {
			userID: "user-1",
			body:   `{"token":"reset-token","password":"p","passwordConfirmation":"q"}`,
			now:    issuedAt.Add(time.Hour),
			field:  "passwordConfirmation",
			reason: "invalid",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			a := redeemAPI(t, issuedAt, func() time.Time { return tc.now })

			req := httptest.NewRequest(http.MethodPut, "/password-reset/"+tc.userID, strings.NewReader(tc.body))
			req.SetPathValue("id", tc.userID)
			rr := httptest.NewRecorder()

			a.handlePasswordResetRedeem(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("unexpected status: %d, body %s", rr.Code, rr.Body.String())
			}
			var resp errorEnvelope
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Fields[tc.field] != tc.reason {
				t.Fatalf("expected %s=%q, got %v", tc.field, tc.reason, resp.Fields)
			}
		})
	}
}
