package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT payload. Field names match the wire format of the tokens
// this service issues: uid/sid/rol plus the registered iat/exp.
type Claims struct {
	UserID    uuid.UUID   `json:"uid"`
	SessionID uuid.UUID   `json:"sid"`
	Role      domain.Role `json:"rol"`
	jwt.RegisteredClaims
}

// TokenPair is an access/refresh token bundle issued for one session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type keyPair struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// Codec signs and verifies RS256 token pairs. Access and refresh tokens use
// separate key pairs so a refresh token cannot pass access-token verification
// and vice versa. Keys are loaded once and read-only afterwards.
type Codec struct {
	access        keyPair
	refresh       keyPair
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewCodec(cfg *config.Config) (*Codec, error) {
	access, err := loadKeyPair(cfg.AccessPrivateKeyPath, cfg.AccessPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("access key pair: %w", err)
	}
	refresh, err := loadKeyPair(cfg.RefreshPrivateKeyPath, cfg.RefreshPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("refresh key pair: %w", err)
	}
	return &Codec{
		access:        access,
		refresh:       refresh,
		accessExpiry:  cfg.AccessTokenExpiry,
		refreshExpiry: cfg.RefreshTokenExpiry,
	}, nil
}

func loadKeyPair(privatePath, publicPath string) (keyPair, error) {
	privBytes, err := os.ReadFile(privatePath)
	if err != nil {
		return keyPair{}, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return keyPair{}, fmt.Errorf("parse private key: %w", err)
	}
	pubBytes, err := os.ReadFile(publicPath)
	if err != nil {
		return keyPair{}, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return keyPair{}, fmt.Errorf("parse public key: %w", err)
	}
	return keyPair{private: privKey, public: pubKey}, nil
}

// IssuePair signs a new access/refresh pair bound to the given session.
func (c *Codec) IssuePair(userID, sessionID uuid.UUID, role domain.Role) (*TokenPair, error) {
	access, err := c.sign(c.access, c.accessExpiry, userID, sessionID, role)
	if err != nil {
		return nil, err
	}
	refresh, err := c.sign(c.refresh, c.refreshExpiry, userID, sessionID, role)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(c.accessExpiry.Seconds()),
	}, nil
}

// VerifyAccess verifies signature and expiry against the access key pair.
func (c *Codec) VerifyAccess(token string) (*Claims, error) {
	return verify(token, c.access.public)
}

// VerifyRefresh verifies signature and expiry against the refresh key pair.
func (c *Codec) VerifyRefresh(token string) (*Claims, error) {
	return verify(token, c.refresh.public)
}

func (c *Codec) sign(pair keyPair, expiry time.Duration, userID, sessionID uuid.UUID, role domain.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(pair.private)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func verify(tokenStr string, key *rsa.PublicKey) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
