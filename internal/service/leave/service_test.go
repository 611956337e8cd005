package leave

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/internal/testutil"
	"ventureops/pkg/apperr"
	"ventureops/pkg/rbac"
)

func TestApplyAndReview(t *testing.T) {
	t.Parallel()

	store := testutil.OpenStore(t)
	ctx := context.Background()
	north := testutil.SeedVenture(t, store, "north")
	south := testutil.SeedVenture(t, store, "south")
	admin := testutil.Principal(testutil.SeedUser(t, store, "A1", rbac.RoleAdmin, nil))
	manager := testutil.Principal(testutil.SeedUser(t, store, "M1", rbac.RoleManager, &north))
	outsider := testutil.Principal(testutil.SeedUser(t, store, "M2", rbac.RoleManager, &south))
	emp := testutil.Principal(testutil.SeedUser(t, store, "E1", rbac.RoleEmployee, &north))
	clock := testutil.NewClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	svc := NewService(store, zap.NewNop()).WithClock(clock.Now)

	l, err := svc.Apply(ctx, emp, Request{
		LeaveType: model.LeaveAnnual,
		StartDate: model.NewDate(2026, 3, 10),
		EndDate:   model.NewDate(2026, 3, 12),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if l.Status != model.LeavePending || l.UserID != emp.ID {
		t.Fatalf("unexpected leave: %+v", l)
	}

	if _, err := svc.Apply(ctx, emp, Request{
		LeaveType: model.LeaveSick,
		StartDate: model.NewDate(2026, 3, 12),
		EndDate:   model.NewDate(2026, 3, 10),
	}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("inverted range: expected validation, got %v", err)
	}
	if _, err := svc.Apply(ctx, emp, Request{LeaveType: "NAP", StartDate: model.NewDate(2026, 3, 1), EndDate: model.NewDate(2026, 3, 1)}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad type: expected validation, got %v", err)
	}

	tests := []struct {
		name   string
		actor  rbac.Principal
		status model.LeaveStatus
		want   error
	}{
		{name: "employee reviews", actor: emp, status: model.LeaveApproved, want: apperr.ErrForbidden},
		{name: "other venture", actor: outsider, status: model.LeaveApproved, want: apperr.ErrForbidden},
		{name: "bad status", actor: manager, status: model.LeavePending, want: apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Review(ctx, tt.actor, l.ID, tt.status); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	reviewed, err := svc.Review(ctx, manager, l.ID, model.LeaveApproved)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != model.LeaveApproved || reviewed.ReviewedByID == nil || *reviewed.ReviewedByID != manager.ID {
		t.Fatalf("unexpected review: %+v", reviewed)
	}
	if _, err := svc.Review(ctx, admin, l.ID, model.LeaveRejected); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("second review: expected invalid state, got %v", err)
	}
	if _, err := svc.Review(ctx, admin, 999, model.LeaveRejected); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	own, err := svc.List(ctx, emp, repository.Page{})
	if err != nil || len(own) != 1 {
		t.Fatalf("employee list: %v %v", own, err)
	}
	foreign, err := svc.List(ctx, outsider, repository.Page{})
	if err != nil || len(foreign) != 0 {
		t.Fatalf("outsider list: %v %v", foreign, err)
	}
}

func TestDeclareHoliday(t *testing.T) {
	t.Parallel()

	store := testutil.OpenStore(t)
	ctx := context.Background()
	north := testutil.SeedVenture(t, store, "north")
	south := testutil.SeedVenture(t, store, "south")
	admin := testutil.Principal(testutil.SeedUser(t, store, "A1", rbac.RoleAdmin, nil))
	manager := testutil.Principal(testutil.SeedUser(t, store, "M1", rbac.RoleManager, &north))
	emp := testutil.Principal(testutil.SeedUser(t, store, "E1", rbac.RoleEmployee, &north))
	svc := NewService(store, zap.NewNop())

	h, err := svc.DeclareHoliday(ctx, manager, HolidayRequest{Name: "Founders day", Date: model.NewDate(2026, 5, 1)})
	if err != nil {
		t.Fatalf("manager holiday: %v", err)
	}
	if h.VentureID == nil || *h.VentureID != north {
		t.Fatalf("manager holiday must bind to own venture: %+v", h)
	}
	if _, err := svc.DeclareHoliday(ctx, admin, HolidayRequest{Name: "New year", Date: model.NewDate(2027, 1, 1)}); err != nil {
		t.Fatalf("global holiday: %v", err)
	}
	if _, err := svc.DeclareHoliday(ctx, manager, HolidayRequest{Name: "x", Date: model.NewDate(2026, 6, 1), VentureID: &south}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.DeclareHoliday(ctx, emp, HolidayRequest{Name: "x", Date: model.NewDate(2026, 6, 1)}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.DeclareHoliday(ctx, admin, HolidayRequest{Name: "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}

	all, err := svc.Holidays(ctx, repository.Page{})
	if err != nil {
		t.Fatalf("holidays: %v", err)
	}
	if len(all) != 2 || all[0].Name != "Founders day" {
		t.Fatalf("unexpected holidays: %+v", all)
	}
}
