package auth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-account-api/internal/application/session"
	"github.com/go-account-api/internal/domain"
	jwtinfra "github.com/go-account-api/internal/infrastructure/jwt"
	redisinfra "github.com/go-account-api/internal/infrastructure/redis"
	"github.com/go-account-api/internal/pkg/code"
	"github.com/go-account-api/internal/pkg/validate"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TwoFactorLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=5"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=5"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// LoginOutcome either carries a token pair or signals that a two-factor code
// was mailed and the client must call the 2FA endpoint next.
type LoginOutcome struct {
	TwoFactor bool
	Tokens    *jwtinfra.TokenPair
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginOutcome, error)
	LoginTwoFactor(ctx context.Context, req TwoFactorLoginRequest) (*jwtinfra.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, refreshToken string) (*jwtinfra.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type txRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type messageStore interface {
	Save(ctx context.Context, idb bun.IDB, userID uuid.UUID, content string, kind domain.MessageKind) (string, error)
}

type tokenCodec interface {
	IssuePair(userID, sessionID uuid.UUID, role domain.Role) (*jwtinfra.TokenPair, error)
	VerifyRefresh(token string) (*jwtinfra.Claims, error)
}

type notifier interface {
	Notify()
}

type service struct {
	db       txRunner
	users    userStore
	messages messageStore
	sessions session.Service
	codec    tokenCodec
	redis    *redis.Client
	notify   notifier
}

func NewService(
	db txRunner,
	users userStore,
	messages messageStore,
	sessions session.Service,
	codec tokenCodec,
	redisClient *redis.Client,
	notify notifier,
) Service {
	return &service{
		db:       db,
		users:    users,
		messages: messages,
		sessions: sessions,
		codec:    codec,
		redis:    redisClient,
		notify:   notify,
	}
}

// Login checks credentials. Users with 2FA enabled get a login code by email
// and no tokens; everyone else gets a fresh session and a token pair.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginOutcome, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	u, err := s.fetchActiveByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	if u.TwoFactor {
		loginCode, err := code.Generate()
		if err != nil {
			return nil, err
		}
		if err := redisinfra.Set(ctx, s.redis, redisinfra.LoginCodeKey{UserID: u.ID}, loginCode); err != nil {
			return nil, err
		}
		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, err := s.messages.Save(ctx, tx, u.ID, loginCode, domain.MessageKindLoginCode)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.notify.Notify()
		slog.Info("two-factor login code issued", "user_id", u.ID)
		return &LoginOutcome{TwoFactor: true}, nil
	}

	tokens, err := s.startSession(ctx, u)
	if err != nil {
		return nil, err
	}
	return &LoginOutcome{Tokens: tokens}, nil
}

// LoginTwoFactor completes a 2FA login by comparing the submitted code with
// the stored one, then starts the session.
func (s *service) LoginTwoFactor(ctx context.Context, req TwoFactorLoginRequest) (*jwtinfra.TokenPair, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	u, err := s.fetchActiveByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	key := redisinfra.LoginCodeKey{UserID: u.ID}
	stored, err := redisinfra.Get[string](ctx, s.redis, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("login code for user %s: %w", u.ID, domain.ErrNotFound)
	}
	if *stored != req.Code {
		return nil, domain.NewInvalidInput("code", "code is invalid")
	}
	if _, err := redisinfra.Del(ctx, s.redis, key); err != nil {
		slog.Warn("failed to delete consumed login code", "user_id", u.ID, "err", err)
	}
	return s.startSession(ctx, u)
}

// Logout deletes the user's session; tokens bound to it stop verifying.
func (s *service) Logout(ctx context.Context, userID uuid.UUID) error {
	exists, err := s.sessions.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("session for user %s: %w", userID, domain.ErrNotFound)
	}
	return s.sessions.Stop(ctx, userID)
}

// Refresh verifies the refresh token against the refresh key pair and the
// session store, then rotates the session and issues a new pair. The old
// session id (and with it every previously issued token) stops working.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*jwtinfra.TokenPair, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := s.sessions.Check(ctx, claims)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("user is not active: %w", domain.ErrForbidden)
	}
	return s.startSession(ctx, u)
}

// ForgotPassword mails a reset code. While a previous code's TTL has not
// elapsed the request is an idempotent no-op: no new code, no new outbox row.
func (s *service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.fetchActiveByEmail(ctx, email)
	if err != nil {
		return err
	}
	key := redisinfra.ForgotPasswordCodeKey{UserID: u.ID}
	live, err := redisinfra.Exists(ctx, s.redis, key)
	if err != nil {
		return err
	}
	if live {
		slog.Info("forgot-password code still live, resend suppressed", "user_id", u.ID)
		return nil
	}
	resetCode, err := code.Generate()
	if err != nil {
		return err
	}
	// The key goes in before the outbox row commits. The reverse order could
	// mail a code that ResetPassword can never match, with no throttle key to
	// stop a retry from minting a second one.
	if err := redisinfra.Set(ctx, s.redis, key, resetCode); err != nil {
		return err
	}
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.messages.Save(ctx, tx, u.ID, resetCode, domain.MessageKindForgotPasswordCode)
		return err
	})
	if err != nil {
		return err
	}
	s.notify.Notify()
	slog.Info("forgot-password code issued", "user_id", u.ID)
	return nil
}

// ResetPassword consumes the reset code. A mismatched code deletes the stored
// one so the user must request a fresh code before retrying.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	u, err := s.fetchActiveByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	key := redisinfra.ForgotPasswordCodeKey{UserID: u.ID}
	stored, err := redisinfra.Get[string](ctx, s.redis, key)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("reset code for user %s: %w", u.ID, domain.ErrNotFound)
	}
	if *stored != req.Code {
		if _, err := redisinfra.Del(ctx, s.redis, key); err != nil {
			slog.Warn("failed to delete mismatched reset code", "user_id", u.ID, "err", err)
		}
		return domain.NewInvalidInput("code", "code is invalid")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, string(hash)); err != nil {
		return err
	}
	if _, err := redisinfra.Del(ctx, s.redis, key); err != nil {
		slog.Warn("failed to delete consumed reset code", "user_id", u.ID, "err", err)
	}
	slog.Info("password reset", "user_id", u.ID)
	return nil
}

func (s *service) startSession(ctx context.Context, u *domain.User) (*jwtinfra.TokenPair, error) {
	sessionID, err := s.sessions.Start(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	tokens, err := s.codec.IssuePair(u.ID, sessionID, u.Role)
	if err != nil {
		return nil, err
	}
	slog.Info("session started", "user_id", u.ID, "session_id", sessionID)
	return tokens, nil
}

func (s *service) fetchActiveByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("user is not active: %w", domain.ErrForbidden)
	}
	return u, nil
}
