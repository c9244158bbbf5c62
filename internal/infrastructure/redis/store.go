package redisinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key is a namespaced redis key with a fixed TTL. Each key family represents a
// single logical "current" value per user, so plain SET overwrite semantics
// (last writer wins) are intentional.
type Key interface {
	fmt.Stringer
	TTL() time.Duration
}

// TTLs per key family. Session lifetime bounds how long an issued token pair
// stays usable without a refresh; the code TTLs bound the verification windows.
const (
	SessionTTL            = 2000 * time.Second
	LoginCodeTTL          = 200 * time.Second
	ForgotPasswordCodeTTL = 200 * time.Second
)

// SessionKey holds the single current session id for a user.
type SessionKey struct{ UserID uuid.UUID }

func (k SessionKey) String() string     { return "session:" + k.UserID.String() }
func (k SessionKey) TTL() time.Duration { return SessionTTL }

// LoginCodeKey holds the pending two-factor login code for a user.
type LoginCodeKey struct{ UserID uuid.UUID }

func (k LoginCodeKey) String() string     { return "login_code:" + k.UserID.String() }
func (k LoginCodeKey) TTL() time.Duration { return LoginCodeTTL }

// ForgotPasswordCodeKey holds the pending password-reset code for a user.
type ForgotPasswordCodeKey struct{ UserID uuid.UUID }

func (k ForgotPasswordCodeKey) String() string     { return "forgot_password_code:" + k.UserID.String() }
func (k ForgotPasswordCodeKey) TTL() time.Duration { return ForgotPasswordCodeTTL }

// Set stores a JSON-encoded value under key, overwriting any previous value
// and resetting the TTL.
func Set[T any](ctx context.Context, client *redis.Client, key Key, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal redis value for %s: %w", key, err)
	}
	if err := client.Set(ctx, key.String(), data, key.TTL()).Err(); err != nil {
		return fmt.Errorf("set redis key %s: %w", key, err)
	}
	return nil
}

// Get returns the decoded value, or nil when the key is absent or expired.
func Get[T any](ctx context.Context, client *redis.Client, key Key) (*T, error) {
	data, err := client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redis key %s: %w", key, err)
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("unmarshal redis value for %s: %w", key, err)
	}
	return &value, nil
}

// Del removes the key and reports whether it existed.
func Del(ctx context.Context, client *redis.Client, key Key) (bool, error) {
	n, err := client.Del(ctx, key.String()).Result()
	if err != nil {
		return false, fmt.Errorf("del redis key %s: %w", key, err)
	}
	return n > 0, nil
}

// Exists reports whether the key is currently live. Used for resend
// throttling: no new code is minted while the old one has TTL left.
func Exists(ctx context.Context, client *redis.Client, key Key) (bool, error) {
	n, err := client.Exists(ctx, key.String()).Result()
	if err != nil {
		return false, fmt.Errorf("exists redis key %s: %w", key, err)
	}
	return n > 0, nil
}

// TTL returns the remaining time-to-live of the key.
func TTL(ctx context.Context, client *redis.Client, key Key) (time.Duration, error) {
	d, err := client.TTL(ctx, key.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("ttl redis key %s: %w", key, err)
	}
	slog.Debug("redis ttl", "key", key.String(), "remaining", d)
	return d, nil
}
