package venture

import (
	"context"
	"errors"
	"testing"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/internal/testutil"
	"ventureops/pkg/apperr"
	"ventureops/pkg/rbac"
)

func TestVentureLifecycle(t *testing.T) {
	t.Parallel()

	store := testutil.OpenStore(t)
	ctx := context.Background()
	existing := testutil.SeedVenture(t, store, "north")
	admin := testutil.Principal(testutil.SeedUser(t, store, "A1", rbac.RoleAdmin, nil))
	manager := testutil.Principal(testutil.SeedUser(t, store, "M1", rbac.RoleManager, &existing))
	svc := NewService(store)

	created, err := svc.Create(ctx, admin, CreateRequest{Name: " south "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "south" {
		t.Fatalf("name = %q, want trimmed", created.Name)
	}

	if _, err := svc.Create(ctx, manager, CreateRequest{Name: "east"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("manager create: expected forbidden, got %v", err)
	}
	if _, err := svc.Create(ctx, admin, CreateRequest{Name: "north"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate: expected conflict, got %v", err)
	}
	if _, err := svc.Create(ctx, admin, CreateRequest{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank: expected validation, got %v", err)
	}

	desc := "southern office"
	updated, err := svc.Update(ctx, admin, created.ID, model.VenturePatch{Description: model.Some(desc)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Description == nil || *updated.Description != desc || updated.Name != "south" {
		t.Fatalf("unexpected venture: %+v", updated)
	}
	if _, err := svc.Update(ctx, admin, created.ID, model.VenturePatch{Name: model.Some("north")}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("rename collision: expected conflict, got %v", err)
	}
	if _, err := svc.Update(ctx, admin, 999, model.VenturePatch{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	all, err := svc.List(ctx, repository.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 ventures, got %d", len(all))
	}
}
