// Package rbac resolves principals and decides what they may read or change.
//
// Every role rule lives here. Services ask for a Scope before reading and call
// the Can*/Check* helpers before writing; they never branch on Role themselves.
package rbac

import (
	"context"
	"errors"

	"ventureops/pkg/apperr"
)

// Role is a principal's role.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// Principal is the authenticated identity for one request.
type Principal struct {
	ID        int
	Role      Role
	VentureID *int
}

// IsStaff reports whether the principal manages tasks (Manager or Admin).
func (p Principal) IsStaff() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}

// Account is what an AccountSource knows about a user.
type Account struct {
	ID        int
	Role      Role
	VentureID *int
	Active    bool
}

// ErrAccountNotFound is returned by an AccountSource for an unknown id.
var ErrAccountNotFound = errors.New("account not found")

// AccountSource looks up accounts by id.
type AccountSource interface {
	LookupAccount(ctx context.Context, id int) (Account, error)
}

// Resolver turns an authenticated user id into a Principal.
type Resolver struct {
	accounts AccountSource
}

func NewResolver(accounts AccountSource) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve returns the principal for userID. Unknown or inactive users are Unauthorized.
func (r *Resolver) Resolve(ctx context.Context, userID int) (Principal, error) {
	acc, err := r.accounts.LookupAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Principal{}, apperr.Unauthorized("unknown principal %d", userID)
		}
		return Principal{}, err
	}
	if !acc.Active {
		return Principal{}, apperr.Unauthorized("inactive principal %d", userID)
	}
	if !acc.Role.Valid() {
		return Principal{}, apperr.Unauthorized("principal %d has unknown role %q", userID, acc.Role)
	}
	return Principal{ID: acc.ID, Role: acc.Role, VentureID: acc.VentureID}, nil
}
