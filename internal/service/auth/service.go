// Package auth issues and verifies bearer tokens.
package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/apperr"
	"ventureops/pkg/rbac"
	"ventureops/pkg/util"
)

type Service struct {
	users     repository.UserRepository
	resolver  *rbac.Resolver
	jwtSecret string
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(users repository.UserRepository, jwtSecret string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		resolver:  rbac.NewResolver(users),
		jwtSecret: jwtSecret,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for token issue times.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, empID, password string) (string, model.User, error) {
	u, err := s.users.FindUserByEmpID(ctx, empID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", model.User{}, apperr.Unauthorized("invalid employee id or password")
	}
	if err != nil {
		return "", model.User{}, err
	}
	if !util.CheckPassword(password, u.PasswordHash) {
		s.logger.Warn("Login rejected", zap.String("emp_id", empID))
		return "", model.User{}, apperr.Unauthorized("invalid employee id or password")
	}
	if !u.IsActive {
		return "", model.User{}, apperr.Unauthorized("account is inactive")
	}

	token, err := util.GenerateJWT(u.ID, s.jwtSecret, s.ttl, s.now())
	if err != nil {
		return "", model.User{}, err
	}
	return token, u, nil
}

// Authenticate verifies token and resolves the principal it names.
func (s *Service) Authenticate(ctx context.Context, token string) (rbac.Principal, error) {
	if token == "" {
		return rbac.Principal{}, apperr.Unauthorized("missing bearer token")
	}
	userID, err := util.ParseJWT(token, s.jwtSecret)
	if err != nil {
		return rbac.Principal{}, apperr.Unauthorized("invalid token")
	}
	return s.resolver.Resolve(ctx, userID)
}
