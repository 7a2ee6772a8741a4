package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"accountd/internal/domain"
)

type requestResetRequest struct {
	Email string `json:"email"`
}

type infoResponse struct {
	Info string `json:"info"`
}

// handlePasswordResetRequest accepts the email and queues the reset email
// job. An unknown address is reported to the caller as a field error; this
// mirrors the interactive flow, where a typo is better surfaced than
// silently dropped.
func (a *api) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	keys := []string{"reset:ip:" + clientIP(r)}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		keys = append(keys, "reset:email:"+email)
	}
	if !a.loginLimiter.AllowAll(time.Now(), keys...) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	if err := a.resetSvc.RequestReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			WriteFieldErrors(w, http.StatusBadRequest, map[string]string{"user": "not found"})
			return
		}
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, infoResponse{Info: "Password reset email sent"})
}

type redeemResetRequest struct {
	Token                string `json:"token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

func (a *api) handlePasswordResetRedeem(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req redeemResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	u, err := a.resetSvc.Redeem(r.Context(), userID, req.Token, req.Password, req.PasswordConfirmation)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			WriteFieldErrors(w, http.StatusBadRequest, map[string]string{"user": "not found"})
			return
		}
		WriteDomainError(w, err)
		return
	}

	writeUser(w, http.StatusOK, u)
}
