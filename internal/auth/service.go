// Package auth issues and validates principal-bound bearer tokens. A signed
// token alone is not enough: its session id must also match the side table,
// so issuing a new token atomically invalidates the previous one.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jmallory/pagefeed/internal/feed"
)

// Config carries token signing parameters.
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
}

// Service implements feed.SessionService over a principal store and a
// session side table.
type Service struct {
	cfg        Config
	principals feed.PrincipalStore
	sessions   feed.SessionTable
	clock      feed.Clock
	ids        feed.IDGenerator
	logger     *zap.Logger
}

// NewService constructs a Service. TokenTTL defaults to 30 minutes when unset.
func NewService(cfg Config, principals feed.PrincipalStore, sessions feed.SessionTable, clock feed.Clock, ids feed.IDGenerator, logger *zap.Logger) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:        cfg,
		principals: principals,
		sessions:   sessions,
		clock:      clock,
		ids:        ids,
		logger:     logger,
	}, nil
}

// Login verifies the credentials and returns a freshly signed token. The
// token's session id replaces any previous one in the side table, so at most
// one token per principal is valid at a time. Unknown names and wrong
// passwords both surface as ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	principal, err := s.principals.FindByName(ctx, username)
	if errors.Is(err, feed.ErrNotFound) {
		return "", feed.ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("resolve principal: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("rejected login", zap.String("principal", username))
		return "", feed.ErrUnauthorized
	}

	sessionID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   principal.Username,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if err := s.sessions.Replace(ctx, principal.Username, sessionID, s.cfg.TokenTTL); err != nil {
		return "", fmt.Errorf("record session: %w", err)
	}

	s.logger.Info("issued session", zap.String("principal", principal.Username))
	return token, nil
}

// Validate checks the token signature, expiry, and that the token's session
// id is still the live one for its principal. It returns the principal name
// on success and ErrUnauthorized on any failure mode.
func (s *Service) Validate(ctx context.Context, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.cfg.Secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return "", feed.ErrUnauthorized
	}
	if claims.Subject == "" || claims.ID == "" {
		return "", feed.ErrUnauthorized
	}

	live, err := s.sessions.Lookup(ctx, claims.Subject)
	if errors.Is(err, feed.ErrNotFound) {
		return "", feed.ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	if live != claims.ID {
		// A newer login superseded this token.
		return "", feed.ErrUnauthorized
	}
	return claims.Subject, nil
}

// Revoke drops the principal's live session, reporting whether one existed.
// Outstanding tokens for the principal stop validating immediately.
func (s *Service) Revoke(ctx context.Context, principal string) (bool, error) {
	removed, err := s.sessions.Remove(ctx, principal)
	if err != nil {
		return false, fmt.Errorf("remove session: %w", err)
	}
	if removed {
		s.logger.Info("revoked session", zap.String("principal", principal))
	}
	return removed, nil
}

// HashPassword produces a bcrypt hash suitable for the principals table.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
