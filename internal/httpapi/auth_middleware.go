package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"accountd/internal/auth"
	"accountd/internal/domain"
)

type authCtxKey int

const authUserKey authCtxKey = iota

// strategy attempts to authenticate a request. A nil error with ok=false
// means the strategy has nothing to say and the next one runs; a non-nil
// error ends the chain with that error.
type strategy func(w http.ResponseWriter, r *http.Request) (domain.User, bool, error)

// requireAuth runs the strategies in a fixed order: signed session cookie,
// then remember-me token, then HTTP Basic with the API key. The first one
// that recognizes the request wins.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	strategies := []strategy{
		a.sessionStrategy,
		a.rememberMeStrategy,
		a.basicStrategy,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		for _, s := range strategies {
			u, ok, err := s(w, r)
			if err != nil {
				WriteDomainError(w, err)
				return
			}
			if ok {
				ctx := context.WithValue(r.Context(), authUserKey, u)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		WriteDomainError(w, domain.ErrUnauthenticated)
	}
}

// sessionStrategy accepts a valid signed session cookie. A missing, garbled
// or stale cookie is not an error here, the chain just moves on.
func (a *api) sessionStrategy(_ http.ResponseWriter, r *http.Request) (domain.User, bool, error) {
	c, err := r.Cookie(auth.SessionCookieName)
	if err != nil || c.Value == "" {
		return domain.User{}, false, nil
	}

	userID, ok := a.cookieCodec.Decode(c.Value)
	if !ok {
		return domain.User{}, false, nil
	}

	u, err := a.authSvc.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return u, true, nil
}

// rememberMeStrategy redeems a remember-me token. Consumption rotates the
// token, so a successful pass re-issues both cookies; a spent or forged
// token clears the cookie and falls through.
func (a *api) rememberMeStrategy(w http.ResponseWriter, r *http.Request) (domain.User, bool, error) {
	c, err := r.Cookie(auth.RememberMeCookieName)
	if err != nil || c.Value == "" {
		return domain.User{}, false, nil
	}

	u, replacement, err := a.authSvc.ConsumeRememberToken(r.Context(), c.Value)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			auth.ClearRememberMeCookie(w, a.cookieSecure)
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}

	auth.SetSessionCookie(w, a.cookieCodec.Encode(u.ID), a.sessionTTL, a.cookieSecure)
	auth.SetRememberMeCookie(w, replacement, a.cookieSecure)
	return u, true, nil
}

// basicStrategy authenticates Basic credentials against the API key. Unlike
// the cookie strategies a presented-but-wrong credential is a hard failure;
// there is nothing below Basic to fall through to.
func (a *api) basicStrategy(_ http.ResponseWriter, r *http.Request) (domain.User, bool, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return domain.User{}, false, nil
	}

	u, err := a.authSvc.AuthenticateAPIKey(r.Context(), username, password)
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

// optionalAuth resolves the user when any strategy recognizes the request
// but lets anonymous requests through. Hard credential failures are
// swallowed; the handler sees no user.
func (a *api) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	strategies := []strategy{
		a.sessionStrategy,
		a.rememberMeStrategy,
		a.basicStrategy,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		for _, s := range strategies {
			u, ok, err := s(w, r)
			if err != nil {
				break
			}
			if ok {
				r = r.WithContext(context.WithValue(r.Context(), authUserKey, u))
				break
			}
		}
		next.ServeHTTP(w, r)
	}
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
