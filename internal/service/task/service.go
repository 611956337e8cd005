// Package task implements the task store operations and the per-task timer.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/apperr"
	"ventureops/pkg/logger"
	"ventureops/pkg/metrics"
	"ventureops/pkg/rbac"
	"ventureops/pkg/validate"
)

type Service struct {
	tasks    repository.TaskRepository
	users    repository.UserRepository
	activity repository.ActivityRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(tasks repository.TaskRepository, users repository.UserRepository, activity repository.ActivityRepository, logger *zap.Logger) *Service {
	return &Service{
		tasks:    tasks,
		users:    users,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// List returns the page of tasks visible to p, ordered by id.
func (s *Service) List(ctx context.Context, p rbac.Principal, page repository.Page) ([]model.Task, error) {
	return s.tasks.ListTasks(ctx, rbac.ScopeFor(p, rbac.ResourceTask), page)
}

// Get returns one task. Tasks outside p's scope read as not found.
func (s *Service) Get(ctx context.Context, p rbac.Principal, id int) (model.Task, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if !rbac.ScopeFor(p, rbac.ResourceTask).Allows(t.Owner()) {
		return model.Task{}, apperr.NotFound("task %d not found", id)
	}
	return t, nil
}

func (s *Service) load(ctx context.Context, id int) (model.Task, error) {
	t, err := s.tasks.GetTask(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Task{}, apperr.NotFound("task %d not found", id)
	}
	return t, err
}

// UniqueAssignees collapses duplicates, keeping first-seen order.
func UniqueAssignees(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Create fans spec out to one task per unique assignee, or one unassigned
// task when assigneeIDs is empty. The batch is written atomically.
func (s *Service) Create(ctx context.Context, p rbac.Principal, spec model.TaskSpec, assigneeIDs []int) ([]model.Task, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := rbac.CanCreateTasks(p); err != nil {
		return nil, err
	}
	spec.Title = strings.TrimSpace(spec.Title)
	if err := validate.Struct(spec); err != nil {
		return nil, err
	}

	now := s.clock()
	ids := UniqueAssignees(assigneeIDs)
	batch := make([]model.Task, 0, max(len(ids), 1))
	if len(ids) == 0 {
		batch = append(batch, spec.NewTask(p.ID, nil, now))
	}
	for _, id := range ids {
		if err := s.checkAssignee(ctx, p, id, "assignee_ids"); err != nil {
			return nil, err
		}
		assignee := id
		batch = append(batch, spec.NewTask(p.ID, &assignee, now))
	}

	created, err := s.tasks.CreateTasks(ctx, batch)
	if err != nil {
		log.Error("Failed to create tasks", zap.Int("creator_id", p.ID), zap.Error(err))
		return nil, fmt.Errorf("create tasks: %w", err)
	}
	metrics.IncrementTasksCreated(string(p.Role), len(created))
	log.Info("Tasks created", zap.Int("creator_id", p.ID), zap.Int("count", len(created)))
	return created, nil
}

func (s *Service) checkAssignee(ctx context.Context, p rbac.Principal, userID int, field string) error {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("user %d not found", userID)
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return apperr.Validationf(field, "user %d is inactive", userID)
	}
	return rbac.CanAssign(p, u.Account())
}

// checkUnassign rejects clearing the assignee when the task would then fall
// back to a creator venture outside p's scope.
func (s *Service) checkUnassign(ctx context.Context, p rbac.Principal, t model.Task) error {
	creator, err := s.users.GetUser(ctx, t.CreatorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	after := rbac.Owner{VentureID: creator.VentureID}
	if err := rbac.CanMutate(p, rbac.ResourceTask, after); err != nil {
		return apperr.Forbidden("unassigning task %d would move it out of your venture", t.ID)
	}
	return nil
}

// Update applies the fields present in patch.
func (s *Service) Update(ctx context.Context, p rbac.Principal, id int, patch model.TaskPatch) (model.Task, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if err := rbac.CanMutate(p, rbac.ResourceTask, t.Owner()); err != nil {
		return model.Task{}, err
	}
	if err := rbac.CheckTaskPatch(p, patch.Fields()); err != nil {
		return model.Task{}, err
	}
	if err := validatePatch(patch); err != nil {
		return model.Task{}, err
	}
	if patch.Empty() {
		return t, nil
	}
	if patch.AssigneeID.Set && patch.AssigneeID.Value != nil {
		if err := s.checkAssignee(ctx, p, *patch.AssigneeID.Value, "assignee_id"); err != nil {
			return model.Task{}, err
		}
	}
	if patch.AssigneeID.Set && patch.AssigneeID.Value == nil {
		if err := s.checkUnassign(ctx, p, t); err != nil {
			return model.Task{}, err
		}
	}

	updated, err := s.tasks.UpdateTask(ctx, id, patch, p.ID, s.clock())
	if errors.Is(err, repository.ErrNotFound) {
		return model.Task{}, apperr.NotFound("task %d not found", id)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	return updated, nil
}

func validatePatch(patch model.TaskPatch) error {
	details := map[string]string{}
	if patch.Title.Set {
		if patch.Title.Value == nil || strings.TrimSpace(*patch.Title.Value) == "" {
			details["title"] = "is required"
		} else if len(*patch.Title.Value) > 255 {
			details["title"] = "must be at most 255"
		}
	}
	if patch.Status.Set && (patch.Status.Value == nil || !patch.Status.Value.Valid()) {
		details["status"] = "must be one of ASSIGNED IN_PROGRESS REVIEW COMPLETED"
	}
	if patch.Priority.Set && (patch.Priority.Value == nil || !patch.Priority.Value.Valid()) {
		details["priority"] = "must be one of LOW MEDIUM HIGH URGENT"
	}
	if patch.Progress.Set && (patch.Progress.Value == nil || *patch.Progress.Value < 0 || *patch.Progress.Value > 100) {
		details["progress"] = "must be between 0 and 100"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid task update", details)
	}
	return nil
}

// Activity returns the projected event history of a visible task.
func (s *Service) Activity(ctx context.Context, p rbac.Principal, id int, page repository.Page) ([]model.Activity, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}
	return s.activity.ListTaskActivity(ctx, id, page)
}
