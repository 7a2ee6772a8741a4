package httpapi

import (
	"net/http"
	"time"

	"accountd/internal/auth"
	"accountd/internal/domain"
	"accountd/internal/service"
)

type userResponse struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FirstName             string     `json:"firstName,omitempty"`
	LastName              string     `json:"lastName,omitempty"`
	AvatarURL             string     `json:"avatarUrl,omitempty"`
	APIKey                string     `json:"apiKey"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	PasswordResetIssuedAt *time.Time `json:"passwordResetIssuedAt,omitempty"`
}

// writeUser renders the sanitized account view. The API key belongs to the
// account owner and every route here is owner-scoped, so it is included;
// hash and token values never are.
func writeUser(w http.ResponseWriter, status int, u domain.User) {
	WriteJSON(w, status, userResponse{
		ID:                    u.ID,
		Email:                 u.Email,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		AvatarURL:             u.AvatarURL,
		APIKey:                u.APIKey,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
		PasswordResetIssuedAt: u.PasswordResetIssuedAt,
	})
}

type createUserRequest struct {
	Email                string `json:"email"`
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	AvatarURL            string `json:"avatarUrl"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

func (a *api) handleUsersCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	u, err := a.accountSvc.Register(r.Context(), service.RegisterParams{
		Email:                req.Email,
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		AvatarURL:            req.AvatarURL,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	// Registration logs the account in.
	auth.SetSessionCookie(w, a.cookieCodec.Encode(u.ID), a.sessionTTL, a.cookieSecure)

	writeUser(w, http.StatusCreated, u)
}

func (a *api) handleUsersMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	writeUser(w, http.StatusOK, u)
}

type updateUserRequest struct {
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	AvatarURL            string `json:"avatarUrl"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`

	// Accepted so clients can echo back the object they received, but
	// never applied: the key assigned at registration is permanent.
	APIKey string `json:"apiKey"`
}

func (a *api) handleUsersMeUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	updated, err := a.accountSvc.UpdateProfile(r.Context(), u.ID, service.UpdateProfileParams{
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		AvatarURL:            req.AvatarURL,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	writeUser(w, http.StatusOK, updated)
}
