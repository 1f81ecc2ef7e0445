// Package access issues and checks session-scoped bearer tokens.
package access

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

const tokenTypeSession = "session"

// Config holds signing settings.
type Config struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

// Claims is the validated content of a token.
type Claims struct {
	SessionID string
	TokenType string
	ExpiresAt time.Time
}

// Service signs and validates tokens.
type Service struct {
	cfg Config
	now func() time.Time
}

// NewService validates the configuration.
func NewService(cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("access token secret cannot be empty")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{cfg: cfg, now: time.Now}, nil
}

// Issue signs a token bound to one session.
func (s *Service) Issue(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", apperrors.Wrap("invalid_input", "session id cannot be empty", nil)
	}
	now := s.now()
	claims := tokenClaims{
		SessionID: sessionID,
		TokenType: tokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   sessionID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap("invalid_token", "failed to sign token", err)
	}
	return signed, nil
}

// Validate checks signature, expiry and token type.
func (s *Service) Validate(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return Claims{}, apperrors.Wrap("invalid_token", "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap("invalid_token", "token invalid", nil)
	}
	if claims.TokenType != tokenTypeSession || claims.SessionID == "" {
		return Claims{}, apperrors.Wrap("invalid_token", "not a session token", nil)
	}
	return Claims{
		SessionID: claims.SessionID,
		TokenType: claims.TokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	TokenType string `json:"type"`
}
