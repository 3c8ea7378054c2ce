package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vintage-realtime/internal/domain"
	jwtinfra "github.com/vintage-realtime/internal/infrastructure/jwt"
	"go.uber.org/zap"
)

// Service resolves a bearer token into the identity attached to a connection.
type Service interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

type tokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	tokens tokenVerifier
	users  userStore
	log    *zap.Logger
}

func NewService(tokens tokenVerifier, users userStore, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &service{tokens: tokens, users: users, log: log.With(zap.String("component", "identity"))}
}

// Verify never falls back to an anonymous identity: every failure, including
// an unreachable user table, is reported as domain.ErrAuthenticationFailed.
func (s *service) Verify(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return domain.Identity{}, fmt.Errorf("empty token: %w", domain.ErrAuthenticationFailed)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("verify token: %v: %w", err, domain.ErrAuthenticationFailed)
	}

	u, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error("user lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
		}
		return domain.Identity{}, fmt.Errorf("resolve user: %w", domain.ErrAuthenticationFailed)
	}
	if !u.Enable {
		return domain.Identity{}, fmt.Errorf("account disabled: %w", domain.ErrAuthenticationFailed)
	}

	role := u.Role
	if role == "" {
		role = claims.Role
	}
	return domain.Identity{
		UserID:    u.UserID,
		Role:      role,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}, nil
}
