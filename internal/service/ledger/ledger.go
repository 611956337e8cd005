// Package ledger is the read side of the append-only time log ledger. Entries
// are written only by the timer's stop transition.
package ledger

import (
	"context"
	"errors"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/apperr"
	"ventureops/pkg/rbac"
)

type Ledger struct {
	logs  repository.TimeLogRepository
	tasks repository.TaskRepository
}

func New(logs repository.TimeLogRepository, tasks repository.TaskRepository) *Ledger {
	return &Ledger{logs: logs, tasks: tasks}
}

// List returns entries matching filter in id order.
func (l *Ledger) List(ctx context.Context, filter repository.TimeLogFilter) ([]model.TimeLog, error) {
	return l.logs.ListTimeLogs(ctx, filter)
}

// SumMinutes totals duration_minutes over filter.
func (l *Ledger) SumMinutes(ctx context.Context, filter repository.TimeLogFilter) (int, error) {
	return l.logs.SumMinutes(ctx, filter)
}

// ForTask lists one task's entries. Tasks outside p's scope read as not found.
func (l *Ledger) ForTask(ctx context.Context, p rbac.Principal, taskID int) ([]model.TimeLog, error) {
	scope := rbac.ScopeFor(p, rbac.ResourceTask)
	t, err := l.tasks.GetTask(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !scope.Allows(t.Owner())) {
		return nil, apperr.NotFound("task %d not found", taskID)
	}
	if err != nil {
		return nil, err
	}
	return l.logs.ListTimeLogs(ctx, repository.TimeLogFilter{Scope: scope, TaskID: &taskID})
}
