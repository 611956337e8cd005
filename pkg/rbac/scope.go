package rbac

import (
	"ventureops/pkg/apperr"
)

// ResourceKind names a record family a scope applies to.
type ResourceKind string

const (
	ResourceTask  ResourceKind = "task"
	ResourceUser  ResourceKind = "user"
	ResourceLeave ResourceKind = "leave"
)

// ScopeKind is the shape of a visibility predicate.
type ScopeKind int

const (
	ScopeNone    ScopeKind = iota // nothing is visible
	ScopeAll                      // everything is visible
	ScopeVenture                  // records owned inside one venture
	ScopeSubject                  // records whose subject is one user
)

// Scope is a read/write predicate. Repositories translate it to SQL; Allows
// evaluates it in memory.
type Scope struct {
	Kind      ScopeKind
	VentureID int
	UserID    int
}

// Owner describes who a record belongs to. For tasks SubjectID is the assignee
// and VentureID the owning venture; for users and leaves SubjectID is the user.
type Owner struct {
	SubjectID *int
	VentureID *int
}

// Allows reports whether a record owned by o is inside the scope.
func (s Scope) Allows(o Owner) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeVenture:
		return o.VentureID != nil && *o.VentureID == s.VentureID
	case ScopeSubject:
		return o.SubjectID != nil && *o.SubjectID == s.UserID
	default:
		return false
	}
}

// ScopeFor returns the predicate applied before any read of kind by p.
// A Manager without a venture gets ScopeNone.
func ScopeFor(p Principal, kind ResourceKind) Scope {
	switch p.Role {
	case RoleAdmin:
		return Scope{Kind: ScopeAll}
	case RoleManager:
		if p.VentureID == nil {
			return Scope{Kind: ScopeNone}
		}
		return Scope{Kind: ScopeVenture, VentureID: *p.VentureID}
	case RoleEmployee:
		return Scope{Kind: ScopeSubject, UserID: p.ID}
	default:
		return Scope{Kind: ScopeNone}
	}
}

// CanMutate returns Forbidden unless o is inside p's scope for kind.
func CanMutate(p Principal, kind ResourceKind, o Owner) error {
	if !ScopeFor(p, kind).Allows(o) {
		return apperr.Forbidden("%s is outside the principal's scope", kind)
	}
	return nil
}

// CanCreateTasks allows Admins and Managers bound to a venture.
func CanCreateTasks(p Principal) error {
	switch p.Role {
	case RoleAdmin:
		return nil
	case RoleManager:
		if p.VentureID == nil {
			return apperr.Forbidden("manager has no venture")
		}
		return nil
	default:
		return apperr.Forbidden("only managers and admins can create tasks")
	}
}

// CanAssign checks that p may make assignee responsible for a task.
func CanAssign(p Principal, assignee Account) error {
	switch p.Role {
	case RoleAdmin:
		return nil
	case RoleManager:
		if p.VentureID == nil || assignee.VentureID == nil || *assignee.VentureID != *p.VentureID {
			return apperr.Forbidden("user %d is outside the manager's venture", assignee.ID)
		}
		return nil
	default:
		return apperr.Forbidden("only managers and admins can assign tasks")
	}
}

var employeeTaskFields = map[string]bool{
	"status":   true,
	"progress": true,
}

// CheckTaskPatch restricts which task fields p may change. Employees may only
// move status and progress.
func CheckTaskPatch(p Principal, fields []string) error {
	if p.Role != RoleEmployee {
		return nil
	}
	for _, f := range fields {
		if !employeeTaskFields[f] {
			return apperr.Forbidden("employees cannot change task field %q", f)
		}
	}
	return nil
}

// CanOperateTimer allows the task's assignee, or staff whose scope covers the task.
func CanOperateTimer(p Principal, o Owner) error {
	if o.SubjectID != nil && *o.SubjectID == p.ID {
		return nil
	}
	if p.IsStaff() && ScopeFor(p, ResourceTask).Allows(o) {
		return nil
	}
	return apperr.Forbidden("principal %d cannot operate this timer", p.ID)
}

// CheckUserCreate enforces who may create an account with role in ventureID.
func CheckUserCreate(p Principal, role Role, ventureID *int) error {
	switch p.Role {
	case RoleAdmin:
		return nil
	case RoleManager:
		if role == RoleAdmin {
			return apperr.Forbidden("managers cannot create admins")
		}
		if p.VentureID == nil || ventureID == nil || *ventureID != *p.VentureID {
			return apperr.Forbidden("managers can only create users in their own venture")
		}
		return nil
	default:
		return apperr.Forbidden("employees cannot create users")
	}
}

// UserChange lists the privileged fields an update touches.
type UserChange struct {
	Role       *Role
	VentureSet bool
	VentureID  *int
	ActiveSet  bool
}

// CheckUserUpdate enforces who may change target and how.
func CheckUserUpdate(p Principal, target Account, change UserChange) error {
	switch p.Role {
	case RoleAdmin:
		return nil
	case RoleManager:
		if target.Role == RoleAdmin {
			return apperr.Forbidden("managers cannot edit admins")
		}
		if p.VentureID == nil || target.VentureID == nil || *target.VentureID != *p.VentureID {
			return apperr.Forbidden("managers cannot edit users in other ventures")
		}
		if change.Role != nil && *change.Role == RoleAdmin {
			return apperr.Forbidden("managers cannot promote to admin")
		}
		if change.VentureSet && (change.VentureID == nil || *change.VentureID != *p.VentureID) {
			return apperr.Forbidden("managers cannot move users to other ventures")
		}
		return nil
	default:
		if target.ID != p.ID {
			return apperr.Forbidden("employees can only edit their own profile")
		}
		if change.Role != nil || change.VentureSet || change.ActiveSet {
			return apperr.Forbidden("employees cannot change role, venture or status")
		}
		return nil
	}
}

// CanManageVentures allows Admins only.
func CanManageVentures(p Principal) error {
	if p.Role != RoleAdmin {
		return apperr.Forbidden("only admins can manage ventures")
	}
	return nil
}

// CanAdminister guards operational endpoints.
func CanAdminister(p Principal) error {
	return CanManageVentures(p)
}

// CanReviewLeave allows staff to review leave owned inside their scope.
func CanReviewLeave(p Principal, o Owner) error {
	if !p.IsStaff() {
		return apperr.Forbidden("only managers and admins can review leave")
	}
	return CanMutate(p, ResourceLeave, o)
}

// CanManageHolidays allows Admins anywhere and Managers for their own venture.
func CanManageHolidays(p Principal, ventureID *int) error {
	switch p.Role {
	case RoleAdmin:
		return nil
	case RoleManager:
		if p.VentureID == nil || ventureID == nil || *ventureID != *p.VentureID {
			return apperr.Forbidden("managers can only declare holidays for their own venture")
		}
		return nil
	default:
		return apperr.Forbidden("employees cannot declare holidays")
	}
}

// CanPublishAnnouncements allows staff.
func CanPublishAnnouncements(p Principal) error {
	if !p.IsStaff() {
		return apperr.Forbidden("only managers and admins can publish announcements")
	}
	return nil
}
