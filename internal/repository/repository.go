// Package repository declares the persistence contracts shared by the
// Postgres and SQLite stores.
package repository

import (
	"context"
	"errors"
	"time"

	"ventureops/internal/model"
	"ventureops/pkg/rbac"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrTimerRunning = errors.New("timer already running")
	ErrTimerIdle    = errors.New("timer not running")
	ErrStateChanged = errors.New("record state changed")
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Page is skip/limit pagination.
type Page struct {
	Skip  int
	Limit int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// TaskRepository stores tasks and owns the timer transitions. Returned tasks
// are fully materialized (venture, assignee, time logs).
type TaskRepository interface {
	// CreateTasks inserts the batch atomically.
	CreateTasks(ctx context.Context, tasks []model.Task) ([]model.Task, error)
	GetTask(ctx context.Context, id int) (model.Task, error)
	// ListTasks returns tasks inside scope ordered by id.
	ListTasks(ctx context.Context, scope rbac.Scope, page Page) ([]model.Task, error)
	UpdateTask(ctx context.Context, id int, patch model.TaskPatch, actorID int, now time.Time) (model.Task, error)
	// StartTimer sets active_timer_start only if it is NULL, as one statement.
	// Returns ErrTimerRunning when a timer is already running.
	StartTimer(ctx context.Context, id int, actorID int, now time.Time) (model.Task, error)
	// StopTimer clears active_timer_start and appends one time log in the same
	// transaction. Returns ErrTimerIdle when no timer is running.
	StopTimer(ctx context.Context, id int, userID int, now time.Time) (model.Task, model.TimeLog, error)
	CountTasksByStatus(ctx context.Context, scope rbac.Scope) (map[model.Status]int, error)
	CountActiveTimers(ctx context.Context, scope rbac.Scope) (int, error)
}

// TimeLogFilter narrows ledger reads. Scope applies to the log's task.
type TimeLogFilter struct {
	Scope  rbac.Scope
	TaskID *int
	UserID *int
	Since  *time.Time
}

// TimeLogRepository is the read side of the append-only ledger.
type TimeLogRepository interface {
	ListTimeLogs(ctx context.Context, filter TimeLogFilter) ([]model.TimeLog, error)
	SumMinutes(ctx context.Context, filter TimeLogFilter) (int, error)
}

type UserRepository interface {
	rbac.AccountSource
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int) (model.User, error)
	FindUserByEmpID(ctx context.Context, empID string) (model.User, error)
	ListUsers(ctx context.Context, scope rbac.Scope, page Page) ([]model.User, error)
	SaveUser(ctx context.Context, u model.User) error
}

type VentureRepository interface {
	CreateVenture(ctx context.Context, v *model.Venture) error
	GetVenture(ctx context.Context, id int) (model.Venture, error)
	ListVentures(ctx context.Context, page Page) ([]model.Venture, error)
	SaveVenture(ctx context.Context, v model.Venture) error
}

type LeaveRepository interface {
	CreateLeave(ctx context.Context, l *model.Leave) error
	GetLeave(ctx context.Context, id int) (model.Leave, error)
	ListLeaves(ctx context.Context, scope rbac.Scope, page Page) ([]model.Leave, error)
	// ReviewLeave moves a PENDING leave to status; ErrStateChanged otherwise.
	ReviewLeave(ctx context.Context, id int, status model.LeaveStatus, reviewerID int, now time.Time) (model.Leave, error)
	CreateHoliday(ctx context.Context, h *model.Holiday) error
	ListHolidays(ctx context.Context, page Page) ([]model.Holiday, error)
}

type AnnouncementRepository interface {
	CreateAnnouncement(ctx context.Context, a *model.Announcement) error
	GetAnnouncement(ctx context.Context, id int) (model.Announcement, error)
	ListActiveAnnouncements(ctx context.Context, page Page) ([]model.Announcement, error)
	// AcknowledgeAnnouncement returns ErrDuplicate on a repeated ack.
	AcknowledgeAnnouncement(ctx context.Context, ack *model.AnnouncementAck) error
}

type ActivityRepository interface {
	// InsertActivity returns ErrDuplicate when the event id was already projected.
	InsertActivity(ctx context.Context, a *model.Activity) error
	ListTaskActivity(ctx context.Context, taskID int, page Page) ([]model.Activity, error)
}

// Store is everything a running service needs from persistence.
type Store interface {
	TaskRepository
	TimeLogRepository
	UserRepository
	VentureRepository
	LeaveRepository
	AnnouncementRepository
	ActivityRepository
	Ping(ctx context.Context) error
	Close() error
}
