package announcement

import (
	"context"
	"errors"
	"testing"

	"ventureops/internal/repository"
	"ventureops/internal/testutil"
	"ventureops/pkg/apperr"
	"ventureops/pkg/rbac"
)

func TestPublishAndAcknowledge(t *testing.T) {
	t.Parallel()

	store := testutil.OpenStore(t)
	ctx := context.Background()
	v := testutil.SeedVenture(t, store, "north")
	manager := testutil.Principal(testutil.SeedUser(t, store, "M1", rbac.RoleManager, &v))
	emp := testutil.Principal(testutil.SeedUser(t, store, "E1", rbac.RoleEmployee, &v))
	svc := NewService(store)

	if _, err := svc.Publish(ctx, emp, CreateRequest{Title: "x", Content: "y"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("employee publish: expected forbidden, got %v", err)
	}
	if _, err := svc.Publish(ctx, manager, CreateRequest{Title: " "}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank: expected validation, got %v", err)
	}
	a, err := svc.Publish(ctx, manager, CreateRequest{Title: "Office closed", Content: "Friday"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	active, err := svc.Active(ctx, repository.Page{})
	if err != nil || len(active) != 1 {
		t.Fatalf("active: %v %v", active, err)
	}

	ack, err := svc.Acknowledge(ctx, emp, a.ID)
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if ack.UserID != emp.ID || ack.AnnouncementID != a.ID {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if _, err := svc.Acknowledge(ctx, emp, a.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("repeat ack: expected conflict, got %v", err)
	}
	if _, err := svc.Acknowledge(ctx, manager, a.ID); err != nil {
		t.Fatalf("second user ack: %v", err)
	}
	if _, err := svc.Acknowledge(ctx, emp, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown: expected not found, got %v", err)
	}
}
