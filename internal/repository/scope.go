package repository

import (
	"strconv"
	"strings"
	"time"

	"ventureops/pkg/rbac"
)

// Args collects bound query parameters. Dollar selects $n placeholders
// (Postgres) over ? (SQLite); Time converts timestamps to the column encoding.
type Args struct {
	Dollar bool
	Time   func(time.Time) any
	Values []any
}

// Add binds v and returns its placeholder.
func (a *Args) Add(v any) string {
	a.Values = append(a.Values, v)
	if a.Dollar {
		return "$" + strconv.Itoa(len(a.Values))
	}
	return "?"
}

// AddTime binds a timestamp through the Time encoder.
func (a *Args) AddTime(t time.Time) string {
	if a.Time != nil {
		return a.Add(a.Time(t))
	}
	return a.Add(t)
}

// ScopeColumns names the SQL expressions a scope compares against.
type ScopeColumns struct {
	Venture string
	Subject string
}

// Column sets for the shared joins used by both stores:
//
//	tasks t LEFT JOIN users a ON a.id = t.assignee_id JOIN users c ON c.id = t.creator_id
//	users u
//	leaves l JOIN users u ON u.id = l.user_id
var (
	TaskScopeColumns  = ScopeColumns{Venture: "COALESCE(a.venture_id, c.venture_id)", Subject: "t.assignee_id"}
	UserScopeColumns  = ScopeColumns{Venture: "u.venture_id", Subject: "u.id"}
	LeaveScopeColumns = ScopeColumns{Venture: "u.venture_id", Subject: "l.user_id"}
)

// ScopeClause renders scope as a boolean SQL expression.
func ScopeClause(scope rbac.Scope, cols ScopeColumns, args *Args) string {
	switch scope.Kind {
	case rbac.ScopeAll:
		return "1 = 1"
	case rbac.ScopeVenture:
		return cols.Venture + " = " + args.Add(scope.VentureID)
	case rbac.ScopeSubject:
		return cols.Subject + " = " + args.Add(scope.UserID)
	default:
		return "1 = 0"
	}
}

// TimeLogWhere renders the WHERE clause of a ledger query over
// time_logs tl joined to the task join.
func TimeLogWhere(filter TimeLogFilter, args *Args) string {
	conds := []string{ScopeClause(filter.Scope, TaskScopeColumns, args)}
	if filter.TaskID != nil {
		conds = append(conds, "tl.task_id = "+args.Add(*filter.TaskID))
	}
	if filter.UserID != nil {
		conds = append(conds, "tl.user_id = "+args.Add(*filter.UserID))
	}
	if filter.Since != nil {
		conds = append(conds, "tl.start_time >= "+args.AddTime(*filter.Since))
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
