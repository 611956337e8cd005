// Package user manages accounts inside the role and venture rules.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/apperr"
	"ventureops/pkg/rbac"
	"ventureops/pkg/util"
	"ventureops/pkg/validate"
)

// CreateRequest is the body of an account creation.
type CreateRequest struct {
	EmpID     string    `json:"emp_id" validate:"required,max=64"`
	FullName  string    `json:"full_name" validate:"required,max=255"`
	Password  string    `json:"password" validate:"required,min=6"`
	Role      rbac.Role `json:"role" validate:"omitempty,oneof=ADMIN MANAGER EMPLOYEE"`
	VentureID *int      `json:"venture_id"`
}

type Service struct {
	users    repository.UserRepository
	ventures repository.VentureRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(users repository.UserRepository, ventures repository.VentureRepository, logger *zap.Logger) *Service {
	return &Service{users: users, ventures: ventures, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context, p rbac.Principal, page repository.Page) ([]model.User, error) {
	return s.users.ListUsers(ctx, rbac.ScopeFor(p, rbac.ResourceUser), page)
}

// Me returns the principal's own record.
func (s *Service) Me(ctx context.Context, p rbac.Principal) (model.User, error) {
	return s.load(ctx, p.ID)
}

// Get returns one user. Users outside p's scope read as not found.
func (s *Service) Get(ctx context.Context, p rbac.Principal, id int) (model.User, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if !rbac.ScopeFor(p, rbac.ResourceUser).Allows(u.Owner()) {
		return model.User{}, apperr.NotFound("user %d not found", id)
	}
	return u, nil
}

func (s *Service) load(ctx context.Context, id int) (model.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.NotFound("user %d not found", id)
	}
	return u, err
}

// Create adds an account. Managers default the venture to their own.
func (s *Service) Create(ctx context.Context, p rbac.Principal, req CreateRequest) (model.User, error) {
	req.EmpID = strings.TrimSpace(req.EmpID)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validate.Struct(req); err != nil {
		return model.User{}, err
	}
	if req.Role == "" {
		req.Role = rbac.RoleEmployee
	}
	if req.VentureID == nil && p.Role == rbac.RoleManager {
		req.VentureID = p.VentureID
	}
	if err := rbac.CheckUserCreate(p, req.Role, req.VentureID); err != nil {
		return model.User{}, err
	}
	if err := s.checkVenture(ctx, req.VentureID); err != nil {
		return model.User{}, err
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		EmpID:        req.EmpID,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         req.Role,
		VentureID:    req.VentureID,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, apperr.Conflict("emp_id %q is already registered", req.EmpID)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("User created", zap.Int("user_id", u.ID), zap.Int("by", p.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *Service) checkVenture(ctx context.Context, ventureID *int) error {
	if ventureID == nil {
		return nil
	}
	_, err := s.ventures.GetVenture(ctx, *ventureID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Validationf("venture_id", "venture %d does not exist", *ventureID)
	}
	return err
}

// Update applies patch to user id.
func (s *Service) Update(ctx context.Context, p rbac.Principal, id int, patch model.UserPatch) (model.User, error) {
	target, err := s.load(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	change := rbac.UserChange{
		VentureSet: patch.VentureID.Set,
		VentureID:  patch.VentureID.Value,
		ActiveSet:  patch.IsActive.Set,
	}
	if patch.Role.Set {
		change.Role = patch.Role.Value
	}
	if err := rbac.CheckUserUpdate(p, target.Account(), change); err != nil {
		return model.User{}, err
	}
	if err := validatePatch(patch); err != nil {
		return model.User{}, err
	}
	if patch.VentureID.Set {
		if err := s.checkVenture(ctx, patch.VentureID.Value); err != nil {
			return model.User{}, err
		}
		target.VentureID = patch.VentureID.Value
	}
	if patch.FullName.Set {
		target.FullName = strings.TrimSpace(*patch.FullName.Value)
	}
	if patch.Role.Set {
		target.Role = *patch.Role.Value
	}
	if patch.IsActive.Set {
		target.IsActive = *patch.IsActive.Value
	}
	if patch.Password.Set {
		hash, err := util.HashPassword(*patch.Password.Value)
		if err != nil {
			return model.User{}, err
		}
		target.PasswordHash = hash
	}

	if err := s.users.SaveUser(ctx, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, apperr.NotFound("user %d not found", id)
		}
		return model.User{}, fmt.Errorf("save user %d: %w", id, err)
	}
	return target, nil
}

func validatePatch(patch model.UserPatch) error {
	details := map[string]string{}
	if patch.FullName.Set && (patch.FullName.Value == nil || strings.TrimSpace(*patch.FullName.Value) == "") {
		details["full_name"] = "is required"
	}
	if patch.Password.Set && (patch.Password.Value == nil || len(*patch.Password.Value) < 6) {
		details["password"] = "must be at least 6"
	}
	if patch.Role.Set && (patch.Role.Value == nil || !patch.Role.Value.Valid()) {
		details["role"] = "must be one of ADMIN MANAGER EMPLOYEE"
	}
	if patch.IsActive.Set && patch.IsActive.Value == nil {
		details["is_active"] = "is required"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid user update", details)
	}
	return nil
}
