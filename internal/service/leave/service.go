// Package leave handles leave requests, their review and holidays.
package leave

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
	"ventureops/pkg/validate"
)

type Request struct {
	LeaveType model.LeaveType `json:"leave_type" validate:"required,oneof=SICK CASUAL ANNUAL OTHER"`
	StartDate model.Date      `json:"start_date"`
	EndDate   model.Date      `json:"end_date"`
	Reason    *string         `json:"reason"`
}

type HolidayRequest struct {
	Name      string     `json:"name" validate:"required,max=255"`
	Date      model.Date `json:"date"`
	VentureID *int       `json:"venture_id"`
}

type Service struct {
	leaves repository.LeaveRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(leaves repository.LeaveRepository, logger *zap.Logger) *Service {
	return &Service{leaves: leaves, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Apply files a PENDING request for p.
func (s *Service) Apply(ctx context.Context, p rbac.Principal, req Request) (model.Leave, error) {
	if err := validate.Struct(req); err != nil {
		return model.Leave{}, err
	}
	details := map[string]string{}
	if req.StartDate.IsZero() {
		details["start_date"] = "is required"
	}
	if req.EndDate.IsZero() {
		details["end_date"] = "is required"
	}
	if len(details) == 0 && req.EndDate.Before(req.StartDate.Time) {
		details["end_date"] = "must not be before start_date"
	}
	if len(details) > 0 {
		return model.Leave{}, apperr.Validation("invalid leave request", details)
	}

	l := model.Leave{
		UserID:    p.ID,
		LeaveType: req.LeaveType,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
		Status:    model.LeavePending,
		AppliedAt: s.now().UTC(),
		VentureID: p.VentureID,
	}
	if err := s.leaves.CreateLeave(ctx, &l); err != nil {
		return model.Leave{}, fmt.Errorf("create leave: %w", err)
	}
	return l, nil
}

func (s *Service) List(ctx context.Context, p rbac.Principal, page repository.Page) ([]model.Leave, error) {
	return s.leaves.ListLeaves(ctx, rbac.ScopeFor(p, rbac.ResourceLeave), page)
}

// Review approves or rejects a PENDING request.
func (s *Service) Review(ctx context.Context, p rbac.Principal, id int, status model.LeaveStatus) (model.Leave, error) {
	if status != model.LeaveApproved && status != model.LeaveRejected {
		return model.Leave{}, apperr.Validationf("status", "must be one of APPROVED REJECTED")
	}
	l, err := s.leaves.GetLeave(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Leave{}, apperr.NotFound("leave %d not found", id)
	}
	if err != nil {
		return model.Leave{}, err
	}
	owner := rbac.Owner{SubjectID: &l.UserID, VentureID: l.VentureID}
	if err := rbac.CanReviewLeave(p, owner); err != nil {
		return model.Leave{}, err
	}

	reviewed, err := s.leaves.ReviewLeave(ctx, id, status, p.ID, s.now().UTC())
	switch {
	case errors.Is(err, repository.ErrStateChanged):
		return model.Leave{}, apperr.InvalidState("leave %d has already been reviewed", id)
	case errors.Is(err, repository.ErrNotFound):
		return model.Leave{}, apperr.NotFound("leave %d not found", id)
	case err != nil:
		return model.Leave{}, fmt.Errorf("review leave %d: %w", id, err)
	}
	s.logger.Info("Leave reviewed", zap.Int("leave_id", id), zap.String("status", string(status)), zap.Int("reviewer_id", p.ID))
	return reviewed, nil
}

func (s *Service) Holidays(ctx context.Context, page repository.Page) ([]model.Holiday, error) {
	return s.leaves.ListHolidays(ctx, page)
}

// DeclareHoliday adds a holiday. Managers default the venture to their own.
func (s *Service) DeclareHoliday(ctx context.Context, p rbac.Principal, req HolidayRequest) (model.Holiday, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return model.Holiday{}, err
	}
	if req.Date.IsZero() {
		return model.Holiday{}, apperr.Validationf("date", "is required")
	}
	if req.VentureID == nil && p.Role == rbac.RoleManager {
		req.VentureID = p.VentureID
	}
	if err := rbac.CanManageHolidays(p, req.VentureID); err != nil {
		return model.Holiday{}, err
	}
	h := model.Holiday{Name: req.Name, Date: req.Date, VentureID: req.VentureID}
	if err := s.leaves.CreateHoliday(ctx, &h); err != nil {
		return model.Holiday{}, fmt.Errorf("create holiday: %w", err)
	}
	return h, nil
}
