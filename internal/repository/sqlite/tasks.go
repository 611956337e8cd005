package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/rbac"
)

const taskSelect = `SELECT t.id, t.title, t.description, t.status, t.priority, t.progress, t.due_date,
       t.assignee_id, t.creator_id, t.active_timer_start, t.created_at, t.updated_at,
       COALESCE(a.venture_id, c.venture_id), a.full_name
  FROM tasks t
  LEFT JOIN users a ON a.id = t.assignee_id
  JOIN users c ON c.id = t.creator_id`

func scanTask(row scanner) (model.Task, error) {
	var (
		t           model.Task
		description sql.NullString
		dueDate     sql.NullInt64
		assigneeID  sql.NullInt64
		timerStart  sql.NullInt64
		createdAt   int64
		updatedAt   int64
		ventureID   sql.NullInt64
		assignee    sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &description, &t.Status, &t.Priority, &t.Progress, &dueDate,
		&assigneeID, &t.CreatorID, &timerStart, &createdAt, &updatedAt, &ventureID, &assignee); err != nil {
		return model.Task{}, err
	}
	t.Description = stringPtr(description)
	t.DueDate = millisPtr(dueDate)
	t.AssigneeID = intPtr(assigneeID)
	t.ActiveTimerStart = millisPtr(timerStart)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	t.VentureID = intPtr(ventureID)
	if t.AssigneeID != nil {
		t.Assignee = &model.UserRef{ID: *t.AssigneeID, FullName: assignee.String}
	}
	t.TimeLogs = []model.TimeLog{}
	return t, nil
}

func (s *Store) CreateTasks(ctx context.Context, tasks []model.Task) ([]model.Task, error) {
	ids := make([]int, 0, len(tasks))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tasks {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO tasks (title, description, status, priority, progress, due_date,
				   assignee_id, creator_id, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.Title, nullString(t.Description), string(t.Status), string(t.Priority), t.Progress,
				nullMillis(t.DueDate), nullInt(t.AssigneeID), t.CreatorID,
				toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("insert task: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("task id: %w", err)
			}
			ids = append(ids, int(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, id int) (model.Task, error) {
	return s.getTask(ctx, s.sqlDB, id)
}

func (s *Store) getTask(ctx context.Context, q querier, id int) (model.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, taskSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	tasks := []model.Task{t}
	if err := s.attachTimeLogs(ctx, q, tasks); err != nil {
		return model.Task{}, err
	}
	return tasks[0], nil
}

func (s *Store) ListTasks(ctx context.Context, scope rbac.Scope, page repository.Page) ([]model.Task, error) {
	page = page.Normalize()
	args := newArgs()
	query := taskSelect + ` WHERE ` + repository.ScopeClause(scope, repository.TaskScopeColumns, args) +
		` ORDER BY t.id LIMIT ` + args.Add(page.Limit) + ` OFFSET ` + args.Add(page.Skip)

	rows, err := s.sqlDB.QueryContext(ctx, query, args.Values...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	_ = rows.Close()

	if err := s.attachTimeLogs(ctx, s.sqlDB, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// attachTimeLogs loads the ledger rows of every task in one query. The caller
// must have closed any open cursor; the pool holds a single connection.
func (s *Store) attachTimeLogs(ctx context.Context, q querier, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[int]int, len(tasks))
	placeholders := make([]string, 0, len(tasks))
	args := make([]any, 0, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		placeholders = append(placeholders, "?")
		args = append(args, t.ID)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT id, task_id, user_id, start_time, end_time, duration_minutes
		   FROM time_logs WHERE task_id IN (`+strings.Join(placeholders, ", ")+`) ORDER BY id`,
		args...)
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
	sets := []string{"updated_at = ?"}
	args := []any{toMillis(now)}
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Title.Set && patch.Title.Value != nil {
		set("title", *patch.Title.Value)
	}
	if patch.Description.Set {
		set("description", nullString(patch.Description.Value))
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
		set("due_date", nullMillis(patch.DueDate.Value))
	}
	if patch.AssigneeID.Set {
		set("assignee_id", nullInt(patch.AssigneeID.Value))
	}
	args = append(args, id)

	res, err := s.sqlDB.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return model.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Task{}, repository.ErrNotFound
	}
	return s.GetTask(ctx, id)
}

func (s *Store) StartTimer(ctx context.Context, id int, actorID int, now time.Time) (model.Task, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE tasks SET active_timer_start = ?, updated_at = ?
		  WHERE id = ? AND active_timer_start IS NULL`,
		toMillis(now), toMillis(now), id)
	if err != nil {
		return model.Task{}, fmt.Errorf("start timer %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetTask(ctx, id); err != nil {
			return model.Task{}, err
		}
		return model.Task{}, repository.ErrTimerRunning
	}
	return s.GetTask(ctx, id)
}

func (s *Store) StopTimer(ctx context.Context, id int, userID int, now time.Time) (model.Task, model.TimeLog, error) {
	var (
		task model.Task
		log  model.TimeLog
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var start sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT active_timer_start FROM tasks WHERE id = ?`, id).Scan(&start)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read timer %d: %w", id, err)
		}
		if !start.Valid {
			return repository.ErrTimerIdle
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET active_timer_start = NULL, updated_at = ?
			  WHERE id = ? AND active_timer_start = ?`,
			toMillis(now), id, start.Int64)
		if err != nil {
			return fmt.Errorf("stop timer %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return repository.ErrTimerIdle
		}

		startTime := fromMillis(start.Int64)
		log = model.TimeLog{
			TaskID:          id,
			UserID:          userID,
			StartTime:       startTime,
			EndTime:         now.UTC(),
			DurationMinutes: model.DurationMinutes(startTime, now),
		}
		ins, err := tx.ExecContext(ctx,
			`INSERT INTO time_logs (task_id, user_id, start_time, end_time, duration_minutes)
			 VALUES (?, ?, ?, ?, ?)`,
			log.TaskID, log.UserID, toMillis(log.StartTime), toMillis(log.EndTime), log.DurationMinutes)
		if err != nil {
			return fmt.Errorf("append time log: %w", err)
		}
		logID, err := ins.LastInsertId()
		if err != nil {
			return fmt.Errorf("time log id: %w", err)
		}
		log.ID = int(logID)

		task, err = s.getTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Task{}, model.TimeLog{}, err
	}
	return task, log, nil
}

func (s *Store) CountTasksByStatus(ctx context.Context, scope rbac.Scope) (map[model.Status]int, error) {
	args := newArgs()
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT t.status, COUNT(*) FROM tasks t
		   LEFT JOIN users a ON a.id = t.assignee_id
		   JOIN users c ON c.id = t.creator_id
		  WHERE `+repository.ScopeClause(scope, repository.TaskScopeColumns, args)+`
		  GROUP BY t.status`, args.Values...)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()
	counts := make(map[model.Status]int)
	for rows.Next() {
		var (
			status model.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Store) CountActiveTimers(ctx context.Context, scope rbac.Scope) (int, error) {
	args := newArgs()
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks t
		   LEFT JOIN users a ON a.id = t.assignee_id
		   JOIN users c ON c.id = t.creator_id
		  WHERE t.active_timer_start IS NOT NULL AND `+
			repository.ScopeClause(scope, repository.TaskScopeColumns, args),
		args.Values...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active timers: %w", err)
	}
	return n, nil
}
