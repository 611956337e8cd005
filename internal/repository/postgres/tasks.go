package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	mqcontracts "ventureops/contracts/mq"
	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/outbox"
	"ventureops/pkg/rbac"
	"ventureops/pkg/trace"
)

const taskSelect = `
	SELECT t.id, t.title, t.description, t.status, t.priority, t.progress, t.due_date,
	       t.assignee_id, t.creator_id, t.active_timer_start, t.created_at, t.updated_at,
	       COALESCE(a.venture_id, c.venture_id), a.full_name
	FROM tasks t
	LEFT JOIN users a ON a.id = t.assignee_id
	JOIN users c ON c.id = t.creator_id`

const aggregateTask = "task"

func scanTask(row pgx.Row) (model.Task, error) {
	var (
		t        model.Task
		assignee *string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Progress, &t.DueDate,
		&t.AssigneeID, &t.CreatorID, &t.ActiveTimerStart, &t.CreatedAt, &t.UpdatedAt, &t.VentureID, &assignee)
	if err != nil {
		return model.Task{}, err
	}
	if t.AssigneeID != nil {
		ref := &model.UserRef{ID: *t.AssigneeID}
		if assignee != nil {
			ref.FullName = *assignee
		}
		t.Assignee = ref
	}
	t.TimeLogs = []model.TimeLog{}
	return t, nil
}

func taskEvent(ctx context.Context, taskID, actorID int, now time.Time) mqcontracts.TaskEvent {
	return mqcontracts.TaskEvent{
		EventID:    newEventID(),
		TaskID:     taskID,
		ActorID:    actorID,
		OccurredAt: now.UTC(),
		TraceID:    trace.FromContext(ctx),
	}
}

func (s *Store) CreateTasks(ctx context.Context, tasks []model.Task) ([]model.Task, error) {
	var out []model.Task
	err := s.observe(ctx, "insert", "tasks", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			ids := make([]int, 0, len(tasks))
			for _, t := range tasks {
				var id int
				err := tx.QueryRow(ctx, `
					INSERT INTO tasks (title, description, status, priority, progress, due_date,
					                   assignee_id, creator_id, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
					RETURNING id`,
					t.Title, t.Description, string(t.Status), string(t.Priority), t.Progress, utcPtr(t.DueDate),
					t.AssigneeID, t.CreatorID, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
				).Scan(&id)
				if err != nil {
					return fmt.Errorf("insert task: %w", err)
				}
				evt := mqcontracts.TaskCreatedPayload{
					TaskEvent:  taskEvent(ctx, id, t.CreatorID, t.CreatedAt),
					Title:      t.Title,
					AssigneeID: t.AssigneeID,
					Priority:   string(t.Priority),
				}
				if err := outbox.InsertEventInTx(ctx, tx, evt.EventID, aggregateTask, int64(id),
					mqcontracts.RoutingTaskCreated, evt); err != nil {
					return err
				}
				ids = append(ids, id)
			}
			out = make([]model.Task, 0, len(ids))
			for _, id := range ids {
				t, err := s.getTask(ctx, tx, id)
				if err != nil {
					return err
				}
				out = append(out, t)
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Error("Failed to create tasks", zap.Int("count", len(tasks)), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, id int) (model.Task, error) {
	var t model.Task
	err := s.observe(ctx, "select", "tasks", func(ctx context.Context) error {
		var err error
		t, err = s.getTask(ctx, s.db, id)
		return err
	})
	return t, err
}

func (s *Store) getTask(ctx context.Context, q dbtx, id int) (model.Task, error) {
	t, err := scanTask(q.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	tasks := []model.Task{t}
	if err := attachTimeLogs(ctx, q, tasks); err != nil {
		return model.Task{}, err
	}
	return tasks[0], nil
}

func (s *Store) ListTasks(ctx context.Context, scope rbac.Scope, page repository.Page) ([]model.Task, error) {
	page = page.Normalize()
	tasks := []model.Task{}
	err := s.observe(ctx, "select", "tasks", func(ctx context.Context) error {
		args := newArgs()
		query := taskSelect + ` WHERE ` + repository.ScopeClause(scope, repository.TaskScopeColumns, args) +
			` ORDER BY t.id LIMIT ` + args.Add(page.Limit) + ` OFFSET ` + args.Add(page.Skip)
		rows, err := s.db.Query(ctx, query, args.Values...)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return fmt.Errorf("scan task: %w", err)
			}
			tasks = append(tasks, t)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()
		return attachTimeLogs(ctx, s.db, tasks)
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func attachTimeLogs(ctx context.Context, q dbtx, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[int]int, len(tasks))
	ids := make([]int64, 0, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		ids = append(ids, int64(t.ID))
	}
	rows, err := q.Query(ctx, `
		SELECT id, task_id, user_id, start_time, end_time, duration_minutes
		FROM time_logs WHERE task_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load time logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanTimeLog(rows)
		if err != nil {
			return fmt.Errorf("scan time log: %w", err)
		}
		i := index[l.TaskID]
		tasks[i].TimeLogs = append(tasks[i].TimeLogs, l)
	}
	return rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, id int, patch model.TaskPatch, actorID int, now time.Time) (model.Task, error) {
	sets := []string{"updated_at = $1"}
	args := []any{now.UTC()}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Title.Set && patch.Title.Value != nil {
		set("title", *patch.Title.Value)
	}
	if patch.Description.Set {
		set("description", patch.Description.Value)
	}
	if patch.Status.Set && patch.Status.Value != nil {
		set("status", string(*patch.Status.Value))
	}
	if patch.Priority.Set && patch.Priority.Value != nil {
		set("priority", string(*patch.Priority.Value))
	}
	if patch.Progress.Set && patch.Progress.Value != nil {
		set("progress", *patch.Progress.Value)
	}
	if patch.DueDate.Set {
		set("due_date", utcPtr(patch.DueDate.Value))
	}
	if patch.AssigneeID.Set {
		set("assignee_id", patch.AssigneeID.Value)
	}
	args = append(args, id)
	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = $` + strconv.Itoa(len(args))

	var task model.Task
	err := s.observe(ctx, "update", "tasks", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("update task %d: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				return repository.ErrNotFound
			}
			task, err = s.getTask(ctx, tx, id)
			if err != nil {
				return err
			}
			evt := mqcontracts.TaskUpdatedPayload{
				TaskEvent: taskEvent(ctx, id, actorID, now),
				Fields:    patch.Fields(),
				Status:    string(task.Status),
			}
			return outbox.InsertEventInTx(ctx, tx, evt.EventID, aggregateTask, int64(id),
				mqcontracts.RoutingTaskUpdated, evt)
		})
	})
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (s *Store) StartTimer(ctx context.Context, id int, actorID int, now time.Time) (model.Task, error) {
	var task model.Task
	err := s.observe(ctx, "update", "tasks", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				UPDATE tasks SET active_timer_start = $1, updated_at = $1
				WHERE id = $2 AND active_timer_start IS NULL`, now.UTC(), id)
			if err != nil {
				return fmt.Errorf("start timer %d: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				if _, err := s.getTask(ctx, tx, id); err != nil {
					return err
				}
				return repository.ErrTimerRunning
			}
			task, err = s.getTask(ctx, tx, id)
			if err != nil {
				return err
			}
			evt := mqcontracts.TimerStartedPayload{
				TaskEvent: taskEvent(ctx, id, actorID, now),
				StartedAt: now.UTC(),
			}
			return outbox.InsertEventInTx(ctx, tx, evt.EventID, aggregateTask, int64(id),
				mqcontracts.RoutingTimerStarted, evt)
		})
	})
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (s *Store) StopTimer(ctx context.Context, id int, userID int, now time.Time) (model.Task, model.TimeLog, error) {
	var (
		task model.Task
		log  model.TimeLog
	)
	err := s.observe(ctx, "update", "tasks", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			var start *time.Time
			err := tx.QueryRow(ctx, `SELECT active_timer_start FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&start)
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("read timer %d: %w", id, err)
			}
			if start == nil {
				return repository.ErrTimerIdle
			}
			if _, err := tx.Exec(ctx, `
				UPDATE tasks SET active_timer_start = NULL, updated_at = $1 WHERE id = $2`,
				now.UTC(), id); err != nil {
				return fmt.Errorf("stop timer %d: %w", id, err)
			}

			log = model.TimeLog{
				TaskID:          id,
				UserID:          userID,
				StartTime:       start.UTC(),
				EndTime:         now.UTC(),
				DurationMinutes: model.DurationMinutes(*start, now),
			}
			err = tx.QueryRow(ctx, `
				INSERT INTO time_logs (task_id, user_id, start_time, end_time, duration_minutes)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				log.TaskID, log.UserID, log.StartTime, log.EndTime, log.DurationMinutes,
			).Scan(&log.ID)
			if err != nil {
				return fmt.Errorf("append time log: %w", err)
			}

			evt := mqcontracts.TimerStoppedPayload{
				TaskEvent:       taskEvent(ctx, id, userID, now),
				TimeLogID:       log.ID,
				StartTime:       log.StartTime,
				EndTime:         log.EndTime,
				DurationMinutes: log.DurationMinutes,
			}
			if err := outbox.InsertEventInTx(ctx, tx, evt.EventID, aggregateTask, int64(id),
				mqcontracts.RoutingTimerStopped, evt); err != nil {
				return err
			}
			task, err = s.getTask(ctx, tx, id)
			return err
		})
	})
	if err != nil {
		return model.Task{}, model.TimeLog{}, err
	}
	return task, log, nil
}

func (s *Store) CountTasksByStatus(ctx context.Context, scope rbac.Scope) (map[model.Status]int, error) {
	counts := make(map[model.Status]int)
	err := s.observe(ctx, "select", "tasks", func(ctx context.Context) error {
		args := newArgs()
		rows, err := s.db.Query(ctx, `
			SELECT t.status, COUNT(*) FROM tasks t
			LEFT JOIN users a ON a.id = t.assignee_id
			JOIN users c ON c.id = t.creator_id
			WHERE `+repository.ScopeClause(scope, repository.TaskScopeColumns, args)+`
			GROUP BY t.status`, args.Values...)
		if err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				status model.Status
				n      int
			)
			if err := rows.Scan(&status, &n); err != nil {
				return fmt.Errorf("scan count: %w", err)
			}
			counts[status] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) CountActiveTimers(ctx context.Context, scope rbac.Scope) (int, error) {
	var n int
	err := s.observe(ctx, "select", "tasks", func(ctx context.Context) error {
		args := newArgs()
		err := s.db.QueryRow(ctx, `
			SELECT COUNT(*) FROM tasks t
			LEFT JOIN users a ON a.id = t.assignee_id
			JOIN users c ON c.id = t.creator_id
			WHERE t.active_timer_start IS NOT NULL AND `+
			repository.ScopeClause(scope, repository.TaskScopeColumns, args),
			args.Values...).Scan(&n)
		if err != nil {
			return fmt.Errorf("count active timers: %w", err)
		}
		return nil
	})
	return n, err
}
