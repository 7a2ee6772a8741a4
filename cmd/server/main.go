package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"accountd/internal/auth"
	"accountd/internal/config"
	"accountd/internal/httpapi"
	"accountd/internal/queue"
	"accountd/internal/service"
	"accountd/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx := context.Background()

	if err := postgres.Migrate(ctx, cfg.DBDSN); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	pgPool, err := postgres.Open(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})
	defer rdb.Close()

	queueClient := queue.NewClient(rdb, logger, "")

	users := postgres.NewUsersStore(pgPool)
	tokens := postgres.NewSessionTokensStore(pgPool)
	resets := postgres.NewPasswordResetStore(pgPool)

	accountSvc := &service.AccountService{
		Users:  users,
		Hasher: auth.DefaultHasher,
	}
	authSvc := &service.AuthService{
		Users:  users,
		Tokens: tokens,
		Hasher: auth.DefaultHasher,
	}
	resetSvc := &service.PasswordResetService{
		Users:    users,
		Resets:   resets,
		Accounts: accountSvc,
		Queue:    queueClient,
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:       logger,
		IsProd:       cfg.IsProd(),
		DBPing:       pgPool.Ping,
		QueuePing:    queueClient.Ping,
		Auth:         authSvc,
		Accounts:     accountSvc,
		Resets:       resetSvc,
		CookieCodec:  auth.NewCookieCodec([]byte(cfg.CookieSecret)),
		CookieSecure: cfg.CookieSecure(),
		SessionTTL:   cfg.SessionTTL,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
