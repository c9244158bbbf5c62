package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-account-api/internal/domain"
	jwtinfra "github.com/go-account-api/internal/infrastructure/jwt"
	redisinfra "github.com/go-account-api/internal/infrastructure/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Service keeps exactly one live session id per user in redis. Issued tokens
// carry the session id; a token whose session id no longer matches the stored
// one is rejected, which is how logout and refresh revoke older tokens.
type Service interface {
	Start(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	Check(ctx context.Context, claims *jwtinfra.Claims) (uuid.UUID, error)
	Stop(ctx context.Context, userID uuid.UUID) error
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
}

type service struct {
	redis *redis.Client
}

func NewService(client *redis.Client) Service {
	return &service{redis: client}
}

// Start stores a fresh session id for the user, overwriting any prior one.
// Any token carrying the previous session id fails Check from now on.
func (s *service) Start(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	sessionID := uuid.New()
	key := redisinfra.SessionKey{UserID: userID}
	if err := redisinfra.Set(ctx, s.redis, key, sessionID); err != nil {
		return uuid.Nil, err
	}
	return sessionID, nil
}

// Check verifies that the claims' session id is still the stored one. A
// mismatch deletes the stale entry and forces a fresh login.
func (s *service) Check(ctx context.Context, claims *jwtinfra.Claims) (uuid.UUID, error) {
	key := redisinfra.SessionKey{UserID: claims.UserID}
	stored, err := redisinfra.Get[uuid.UUID](ctx, s.redis, key)
	if err != nil {
		return uuid.Nil, err
	}
	if stored == nil {
		return uuid.Nil, fmt.Errorf("session for user %s: %w", claims.UserID, domain.ErrNotFound)
	}
	if *stored != claims.SessionID {
		slog.Info("stale session id, deleting session", "user_id", claims.UserID)
		if _, err := redisinfra.Del(ctx, s.redis, key); err != nil {
			return uuid.Nil, err
		}
		return uuid.Nil, domain.ErrInvalidSession
	}
	return claims.UserID, nil
}

// Stop deletes the session record (logout).
func (s *service) Stop(ctx context.Context, userID uuid.UUID) error {
	_, err := redisinfra.Del(ctx, s.redis, redisinfra.SessionKey{UserID: userID})
	return err
}

func (s *service) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	return redisinfra.Exists(ctx, s.redis, redisinfra.SessionKey{UserID: userID})
}
