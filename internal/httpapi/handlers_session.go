package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"accountd/internal/auth"
	"accountd/internal/domain"
)

type createSessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

func (a *api) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	fields := map[string]string{}
	if req.Email == "" {
		fields["email"] = "required"
	}
	if req.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		WriteDomainError(w, domain.NewValidationError(fields))
		return
	}

	if !a.loginLimiter.AllowAll(time.Now(), "ip:"+clientIP(r), "email:"+strings.ToLower(req.Email)) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	u, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Bad credentials on the login form are a client error, not a
		// challenge: the interactive flow replies 400, unlike the
		// dispatcher's 401 for rejected Basic credentials.
		if errors.Is(err, domain.ErrInvalidCredentials) {
			WriteError(w, http.StatusBadRequest, "invalid_credentials", "invalid email or password")
			return
		}
		WriteDomainError(w, err)
		return
	}

	auth.SetSessionCookie(w, a.cookieCodec.Encode(u.ID), a.sessionTTL, a.cookieSecure)

	if req.Remember {
		token, err := a.authSvc.IssueRememberToken(r.Context(), u.ID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		auth.SetRememberMeCookie(w, token, a.cookieSecure)
	}

	writeUser(w, http.StatusOK, u)
}

// handleSessionDestroy retires every remember-me token the user holds and
// drops both cookies. Safe to call without a live session.
func (a *api) handleSessionDestroy(w http.ResponseWriter, r *http.Request) {
	if u, ok := CurrentUser(r.Context()); ok {
		if err := a.authSvc.Logout(r.Context(), u.ID); err != nil {
			WriteDomainError(w, err)
			return
		}
	}

	auth.ClearSessionCookie(w, a.cookieSecure)
	auth.ClearRememberMeCookie(w, a.cookieSecure)

	WriteJSON(w, http.StatusOK, struct{}{})
}
