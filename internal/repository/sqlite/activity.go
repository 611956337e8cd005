package sqlite

import (
	"context"
	"fmt"

	"ventureops/internal/model"
	"ventureops/internal/repository"
)

func (s *Store) InsertActivity(ctx context.Context, a *model.Activity) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO task_activity (event_id, task_id, actor_id, kind, payload, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.EventID, a.TaskID, a.ActorID, a.Kind, string(a.Payload), toMillis(a.OccurredAt))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("activity id: %w", err)
	}
	a.ID = int(id)
	return nil
}

func (s *Store) ListTaskActivity(ctx context.Context, taskID int, page repository.Page) ([]model.Activity, error) {
	page = page.Normalize()
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, event_id, task_id, actor_id, kind, payload, occurred_at
		   FROM task_activity WHERE task_id = ? ORDER BY occurred_at, id LIMIT ? OFFSET ?`,
		taskID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()
	out := []model.Activity{}
	for rows.Next() {
		var (
			a          model.Activity
			payload    string
			occurredAt int64
		)
		if err := rows.Scan(&a.ID, &a.EventID, &a.TaskID, &a.ActorID, &a.Kind, &payload, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Payload = []byte(payload)
		a.OccurredAt = fromMillis(occurredAt)
		out = append(out, a)
	}
	return out, rows.Err()
}
