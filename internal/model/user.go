package model

import (
	"time"

	"ventureops/pkg/rbac"
)

type User struct {
	ID           int       `json:"id"`
	EmpID        string    `json:"emp_id"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         rbac.Role `json:"role"`
	VentureID    *int      `json:"venture_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) Account() rbac.Account {
	return rbac.Account{ID: u.ID, Role: u.Role, VentureID: u.VentureID, Active: u.IsActive}
}

// Owner returns the user's ownership for scope checks.
func (u User) Owner() rbac.Owner {
	id := u.ID
	return rbac.Owner{SubjectID: &id, VentureID: u.VentureID}
}

type UserPatch struct {
	FullName  Optional[string]    `json:"full_name"`
	Password  Optional[string]    `json:"password"`
	Role      Optional[rbac.Role] `json:"role"`
	VentureID Optional[int]       `json:"venture_id"`
	IsActive  Optional[bool]      `json:"is_active"`
}

type Venture struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type VenturePatch struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
}
