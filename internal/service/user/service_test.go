package user

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/internal/testutil"
	"ventureops/pkg/apperr"
	"ventureops/pkg/rbac"
	"ventureops/pkg/util"
)

func TestCreate(t *testing.T) {
	t.Parallel()

	store := testutil.OpenStore(t)
	ctx := context.Background()
	north := testutil.SeedVenture(t, store, "north")
	south := testutil.SeedVenture(t, store, "south")
	admin := testutil.Principal(testutil.SeedUser(t, store, "A1", rbac.RoleAdmin, nil))
	manager := testutil.Principal(testutil.SeedUser(t, store, "M1", rbac.RoleManager, &north))
	emp := testutil.Principal(testutil.SeedUser(t, store, "E1", rbac.RoleEmployee, &north))
	svc := NewService(store, store, zap.NewNop())

	u, err := svc.Create(ctx, manager, CreateRequest{EmpID: "E2", FullName: "New Hire", Password: "secret1"})
	if err != nil {
		t.Fatalf("manager create: %v", err)
	}
	if u.Role != rbac.RoleEmployee || u.VentureID == nil || *u.VentureID != north || !u.IsActive {
		t.Fatalf("defaults not applied: %+v", u)
	}
	if !util.CheckPassword("secret1", u.PasswordHash) {
		t.Fatal("password must be stored hashed")
	}
	missing := 404

	tests := []struct {
		name  string
		actor rbac.Principal
		req   CreateRequest
		want  error
	}{
		{name: "duplicate emp id", actor: admin, req: CreateRequest{EmpID: "E2", FullName: "x", Password: "secret1"}, want: apperr.ErrConflict},
		{name: "manager creates admin", actor: manager, req: CreateRequest{EmpID: "A2", FullName: "x", Password: "secret1", Role: rbac.RoleAdmin}, want: apperr.ErrForbidden},
		{name: "manager other venture", actor: manager, req: CreateRequest{EmpID: "E3", FullName: "x", Password: "secret1", VentureID: &south}, want: apperr.ErrForbidden},
		{name: "employee", actor: emp, req: CreateRequest{EmpID: "E4", FullName: "x", Password: "secret1"}, want: apperr.ErrForbidden},
		{name: "short password", actor: admin, req: CreateRequest{EmpID: "E5", FullName: "x", Password: "123"}, want: apperr.ErrValidation},
		{name: "unknown role", actor: admin, req: CreateRequest{EmpID: "E6", FullName: "x", Password: "secret1", Role: "OWNER"}, want: apperr.ErrValidation},
		{name: "unknown venture", actor: admin, req: CreateRequest{EmpID: "E7", FullName: "x", Password: "secret1", VentureID: &missing}, want: apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.actor, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	store := testutil.OpenStore(t)
	ctx := context.Background()
	north := testutil.SeedVenture(t, store, "north")
	south := testutil.SeedVenture(t, store, "south")
	adminUser := testutil.SeedUser(t, store, "A1", rbac.RoleAdmin, nil)
	admin := testutil.Principal(adminUser)
	manager := testutil.Principal(testutil.SeedUser(t, store, "M1", rbac.RoleManager, &north))
	empUser := testutil.SeedUser(t, store, "E1", rbac.RoleEmployee, &north)
	emp := testutil.Principal(empUser)
	foreign := testutil.SeedUser(t, store, "E2", rbac.RoleEmployee, &south)
	svc := NewService(store, store, zap.NewNop())

	renamed, err := svc.Update(ctx, emp, empUser.ID, model.UserPatch{FullName: model.Some("Renamed"), Password: model.Some("another1")})
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if renamed.FullName != "Renamed" || !util.CheckPassword("another1", renamed.PasswordHash) {
		t.Fatalf("self update not applied: %+v", renamed)
	}

	promoted, err := svc.Update(ctx, manager, empUser.ID, model.UserPatch{Role: model.Some(rbac.RoleManager)})
	if err != nil {
		t.Fatalf("manager promote: %v", err)
	}
	if promoted.Role != rbac.RoleManager {
		t.Fatalf("role = %s", promoted.Role)
	}

	tests := []struct {
		name   string
		actor  rbac.Principal
		target int
		patch  model.UserPatch
		want   error
	}{
		{name: "manager edits admin", actor: manager, target: adminUser.ID, patch: model.UserPatch{FullName: model.Some("x")}, want: apperr.ErrForbidden},
		{name: "manager edits other venture", actor: manager, target: foreign.ID, patch: model.UserPatch{FullName: model.Some("x")}, want: apperr.ErrForbidden},
		{name: "manager promotes to admin", actor: manager, target: empUser.ID, patch: model.UserPatch{Role: model.Some(rbac.RoleAdmin)}, want: apperr.ErrForbidden},
		{name: "manager moves venture", actor: manager, target: empUser.ID, patch: model.UserPatch{VentureID: model.Some(south)}, want: apperr.ErrForbidden},
		{name: "employee edits other", actor: emp, target: foreign.ID, patch: model.UserPatch{FullName: model.Some("x")}, want: apperr.ErrForbidden},
		{name: "blank name", actor: admin, target: empUser.ID, patch: model.UserPatch{FullName: model.Some(" ")}, want: apperr.ErrValidation},
		{name: "unknown user", actor: admin, target: 999, patch: model.UserPatch{FullName: model.Some("x")}, want: apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, tt.actor, tt.target, tt.patch); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	moved, err := svc.Update(ctx, admin, foreign.ID, model.UserPatch{VentureID: model.Some(north), IsActive: model.Some(false)})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if *moved.VentureID != north || moved.IsActive {
		t.Fatalf("admin update not applied: %+v", moved)
	}
}

func TestListAndGetScope(t *testing.T) {
	t.Parallel()

	store := testutil.OpenStore(t)
	ctx := context.Background()
	north := testutil.SeedVenture(t, store, "north")
	south := testutil.SeedVenture(t, store, "south")
	manager := testutil.Principal(testutil.SeedUser(t, store, "M1", rbac.RoleManager, &north))
	empUser := testutil.SeedUser(t, store, "E1", rbac.RoleEmployee, &north)
	foreign := testutil.SeedUser(t, store, "E2", rbac.RoleEmployee, &south)
	svc := NewService(store, store, zap.NewNop())

	users, err := svc.List(ctx, manager, repository.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("manager should see 2 users, got %d", len(users))
	}
	self, err := svc.List(ctx, testutil.Principal(empUser), repository.Page{})
	if err != nil {
		t.Fatalf("list self: %v", err)
	}
	if len(self) != 1 || self[0].ID != empUser.ID {
		t.Fatalf("employee should only see self, got %+v", self)
	}
	if _, err := svc.Get(ctx, manager, foreign.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	me, err := svc.Me(ctx, testutil.Principal(empUser))
	if err != nil || me.EmpID != "E1" {
		t.Fatalf("me: %+v %v", me, err)
	}
}
