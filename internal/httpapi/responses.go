package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"accountd/internal/domain"
)

type errorEnvelope struct {
	Error  apiError          `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

// WriteFieldErrors reports per-field problems, e.g. {"password": "required"}.
func WriteFieldErrors(w http.ResponseWriter, status int, fields map[string]string) {
	WriteJSON(w, status, errorEnvelope{
		Error:  apiError{Code: "validation_error", Message: "invalid request"},
		Fields: fields,
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteFieldErrors(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, domain.ErrResetTokenInvalid):
		WriteFieldErrors(w, http.StatusBadRequest, map[string]string{"token": "invalid"})
	case errors.Is(err, domain.ErrResetTokenExpired):
		WriteFieldErrors(w, http.StatusBadRequest, map[string]string{"token": "expired"})
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", "email already taken")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, domain.ErrUnknownAPIKey):
		WriteError(w, http.StatusUnauthorized, "unknown_api_key", "unknown api key")
	case errors.Is(err, domain.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrQueueUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "queue_unavailable", "try again later")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
