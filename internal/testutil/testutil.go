// Package testutil provides SQLite-backed fixtures and a controllable clock
// for service and handler tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ventureops/internal/model"
	"ventureops/internal/repository/sqlite"
	"ventureops/pkg/rbac"
	"ventureops/pkg/util"
)

// Password is the plain-text password of every seeded user.
const Password = "s3cret-pass"

var (
	hashOnce sync.Once
	hash     string
)

func passwordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := util.HashPassword(Password)
		if err != nil {
			panic(err)
		}
		hash = h
	})
	return hash
}

// OpenStore opens a migrated store in a temp dir, closed on cleanup.
func OpenStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ventureops.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func SeedVenture(t *testing.T, store *sqlite.Store, name string) int {
	t.Helper()
	v := model.Venture{Name: name}
	if err := store.CreateVenture(context.Background(), &v); err != nil {
		t.Fatalf("create venture %q: %v", name, err)
	}
	return v.ID
}

// SeedUser creates an active user whose password is Password.
func SeedUser(t *testing.T, store *sqlite.Store, empID string, role rbac.Role, ventureID *int) model.User {
	t.Helper()
	u := model.User{
		EmpID:        empID,
		FullName:     "User " + empID,
		PasswordHash: passwordHash(t),
		Role:         role,
		VentureID:    ventureID,
		IsActive:     true,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user %q: %v", empID, err)
	}
	return u
}

// Principal returns the principal the resolver would build for u.
func Principal(u model.User) rbac.Principal {
	return rbac.Principal{ID: u.ID, Role: u.Role, VentureID: u.VentureID}
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
