// Package venture manages tenants.
package venture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/apperr"
	"ventureops/pkg/rbac"
	"ventureops/pkg/validate"
)

type CreateRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
}

type Service struct {
	ventures repository.VentureRepository
}

func NewService(ventures repository.VentureRepository) *Service {
	return &Service{ventures: ventures}
}

// List is open to every authenticated principal.
func (s *Service) List(ctx context.Context, page repository.Page) ([]model.Venture, error) {
	return s.ventures.ListVentures(ctx, page)
}

func (s *Service) Get(ctx context.Context, id int) (model.Venture, error) {
	v, err := s.ventures.GetVenture(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Venture{}, apperr.NotFound("venture %d not found", id)
	}
	return v, err
}

func (s *Service) Create(ctx context.Context, p rbac.Principal, req CreateRequest) (model.Venture, error) {
	if err := rbac.CanManageVentures(p); err != nil {
		return model.Venture{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return model.Venture{}, err
	}
	v := model.Venture{Name: req.Name, Description: req.Description}
	if err := s.ventures.CreateVenture(ctx, &v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Venture{}, apperr.Conflict("venture %q already exists", req.Name)
		}
		return model.Venture{}, fmt.Errorf("create venture: %w", err)
	}
	return v, nil
}

func (s *Service) Update(ctx context.Context, p rbac.Principal, id int, patch model.VenturePatch) (model.Venture, error) {
	if err := rbac.CanManageVentures(p); err != nil {
		return model.Venture{}, err
	}
	v, err := s.Get(ctx, id)
	if err != nil {
		return model.Venture{}, err
	}
	if patch.Name.Set {
		if patch.Name.Value == nil || strings.TrimSpace(*patch.Name.Value) == "" {
			return model.Venture{}, apperr.Validationf("name", "is required")
		}
		v.Name = strings.TrimSpace(*patch.Name.Value)
	}
	if patch.Description.Set {
		v.Description = patch.Description.Value
	}
	if err := s.ventures.SaveVenture(ctx, v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Venture{}, apperr.Conflict("venture %q already exists", v.Name)
		}
		return model.Venture{}, fmt.Errorf("save venture %d: %w", id, err)
	}
	return v, nil
}
