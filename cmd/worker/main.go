package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"accountd/internal/config"
	"accountd/internal/mail"
	"accountd/internal/queue"
	"accountd/internal/service"
	"accountd/internal/store/postgres"
	"accountd/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	resets := postgres.NewPasswordResetStore(pgPool)

	emailer := &worker.PasswordResetEmailer{
		Users: users,
		Resets: &service.PasswordResetService{
			Users:  users,
			Resets: resets,
		},
		Sender: &mail.SMTPSender{
			Settings: mail.Settings{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				TLSMode:  cfg.SMTP.TLSMode,
			},
			Defaults: mail.Defaults{
				FromName:  cfg.Mail.FromName,
				FromEmail: cfg.Mail.FromEmail,
			},
		},
		BaseURL: baseURL(cfg),
		Logger:  logger,
	}

	w, err := queue.NewWorker(queueClient, logger, worker.Handlers(emailer), queue.WorkerOpts{
		Metrics: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logger.Error("worker init failed", "err", err)
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", promhttp.Handler())
		metricsSrv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("worker running", "env", cfg.Env)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}

// baseURL is the root for links embedded in outgoing email. Falls back to
// the local server address when no public URL is configured, which keeps
// dev flows clickable.
func baseURL(cfg config.Config) *url.URL {
	if cfg.PublicURL != nil {
		return cfg.PublicURL
	}
	return &url.URL{Scheme: "http", Host: cfg.Addr}
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
