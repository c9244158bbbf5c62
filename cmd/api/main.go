package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-account-api/internal/application/auth"
	"github.com/go-account-api/internal/application/session"
	"github.com/go-account-api/internal/application/user"
	"github.com/go-account-api/internal/config"
	jwtinfra "github.com/go-account-api/internal/infrastructure/jwt"
	"github.com/go-account-api/internal/infrastructure/postgres"
	redisinfra "github.com/go-account-api/internal/infrastructure/redis"
	"github.com/go-account-api/internal/infrastructure/smtp"
	"github.com/go-account-api/internal/infrastructure/template"
	httpapi "github.com/go-account-api/internal/transport/http"
	"github.com/go-account-api/internal/worker"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment")
	}
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Bootstrap(ctx, db); err != nil {
		return err
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	codec, err := jwtinfra.NewCodec(cfg)
	if err != nil {
		return err
	}
	renderer, err := template.NewRenderer()
	if err != nil {
		return err
	}

	userRepo := postgres.NewUserRepo(db)
	messageRepo := postgres.NewMessageRepo(db)
	mailer := smtp.NewMailer(cfg)
	notify := worker.NewNotifier()

	sessions := session.NewService(redisClient)
	userSvc := user.NewService(db, userRepo, messageRepo, notify)
	authSvc := auth.NewService(db, userRepo, messageRepo, sessions, codec, redisClient, notify)

	messenger := worker.NewMessenger(cfg, messageRepo, userRepo, renderer, mailer, notify)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		messenger.Run(ctx)
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      httpapi.NewRouter(cfg, codec, sessions, userSvc, authSvc),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "err", err)
	}

	// The worker loop exits on the same signal context.
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		slog.Warn("delivery worker did not stop in time")
	}
	return nil
}
