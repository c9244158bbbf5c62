package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-account-api/internal/application/session"
	"github.com/go-account-api/internal/domain"
	jwtinfra "github.com/go-account-api/internal/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFrom returns the verified token claims stored by Authenticator.
func ClaimsFrom(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}

type accessVerifier interface {
	VerifyAccess(token string) (*jwtinfra.Claims, error)
}

// Authenticator verifies the bearer token and checks that its session id is
// still the live one for the user. A valid signature alone is not enough;
// logout and refresh both revoke older session ids.
func Authenticator(codec accessVerifier, sessions session.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			claims, err := codec.VerifyAccess(token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			if _, err := sessions.Check(r.Context(), claims); err != nil {
				// Only a missing or stale session is the client's fault; a
				// session store outage must not read as a revoked login.
				if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
					unauthorized(w, "invalid session")
					return
				}
				slog.Error("session check", "err", err)
				serverError(w)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
