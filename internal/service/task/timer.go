package task

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/apperr"
	"ventureops/pkg/logger"
	"ventureops/pkg/metrics"
	"ventureops/pkg/rbac"
)

// StartTimer moves the task's timer from Idle to Running.
func (s *Service) StartTimer(ctx context.Context, p rbac.Principal, id int) (model.Task, error) {
	if err := s.authorizeTimer(ctx, p, id); err != nil {
		return model.Task{}, err
	}
	t, err := s.tasks.StartTimer(ctx, id, p.ID, s.clock())
	switch {
	case errors.Is(err, repository.ErrTimerRunning):
		metrics.RecordTimerTransition("start", "rejected")
		return model.Task{}, apperr.InvalidState("timer for task %d is already running", id)
	case errors.Is(err, repository.ErrNotFound):
		return model.Task{}, apperr.NotFound("task %d not found", id)
	case err != nil:
		metrics.RecordTimerTransition("start", "error")
		return model.Task{}, fmt.Errorf("start timer %d: %w", id, err)
	}
	metrics.RecordTimerTransition("start", "ok")
	logger.WithTrace(ctx, s.logger).Info("Timer started", zap.Int("task_id", id), zap.Int("user_id", p.ID))
	return t, nil
}

// StopTimer moves the timer from Running to Idle and appends one time log
// attributed to p.
func (s *Service) StopTimer(ctx context.Context, p rbac.Principal, id int) (model.Task, error) {
	if err := s.authorizeTimer(ctx, p, id); err != nil {
		return model.Task{}, err
	}
	t, entry, err := s.tasks.StopTimer(ctx, id, p.ID, s.clock())
	switch {
	case errors.Is(err, repository.ErrTimerIdle):
		metrics.RecordTimerTransition("stop", "rejected")
		return model.Task{}, apperr.InvalidState("timer for task %d is not running", id)
	case errors.Is(err, repository.ErrNotFound):
		return model.Task{}, apperr.NotFound("task %d not found", id)
	case err != nil:
		metrics.RecordTimerTransition("stop", "error")
		return model.Task{}, fmt.Errorf("stop timer %d: %w", id, err)
	}
	metrics.RecordTimerTransition("stop", "ok")
	metrics.AddMinutesLogged(entry.DurationMinutes)
	logger.WithTrace(ctx, s.logger).Info("Timer stopped",
		zap.Int("task_id", id),
		zap.Int("user_id", p.ID),
		zap.Int("duration_minutes", entry.DurationMinutes),
	)
	return t, nil
}

func (s *Service) authorizeTimer(ctx context.Context, p rbac.Principal, id int) error {
	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return rbac.CanOperateTimer(p, t.Owner())
}
