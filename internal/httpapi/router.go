package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"accountd/internal/auth"
	"accountd/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing    func(context.Context) error
	QueuePing func(context.Context) error

	Auth         *service.AuthService
	Accounts     *service.AccountService
	Resets       *service.PasswordResetService
	CookieCodec  auth.CookieCodec
	CookieSecure bool
	SessionTTL   time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:       logger,
		isProd:       opts.IsProd,
		dbPing:       opts.DBPing,
		queuePing:    opts.QueuePing,
		authSvc:      opts.Auth,
		accountSvc:   opts.Accounts,
		resetSvc:     opts.Resets,
		cookieCodec:  opts.CookieCodec,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
		loginLimiter: newLoginLimiter(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealthz)

	mux.HandleFunc("POST /session", api.handleSessionCreate)
	mux.HandleFunc("GET /session/destroy", api.optionalAuth(api.handleSessionDestroy))

	mux.HandleFunc("POST /password-reset", api.handlePasswordResetRequest)
	mux.HandleFunc("PUT /password-reset/{id}", api.handlePasswordResetRedeem)

	mux.HandleFunc("POST /users", api.handleUsersCreate)
	mux.HandleFunc("GET /users/me", api.requireAuth(api.handleUsersMe))
	mux.HandleFunc("PATCH /users/me", api.requireAuth(api.handleUsersMeUpdate))

	var h http.Handler = mux
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing    func(context.Context) error
	queuePing func(context.Context) error

	authSvc      *service.AuthService
	accountSvc   *service.AccountService
	resetSvc     *service.PasswordResetService
	cookieCodec  auth.CookieCodec
	cookieSecure bool
	sessionTTL   time.Duration

	loginLimiter *loginLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if a.dbPing != nil {
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}
	if a.queuePing != nil {
		if err := a.queuePing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("queue down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
