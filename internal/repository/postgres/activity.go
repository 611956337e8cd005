package postgres

import (
	"context"
	"fmt"

	"ventureops/internal/model"
	"ventureops/internal/repository"
)

func (s *Store) InsertActivity(ctx context.Context, a *model.Activity) error {
	return s.observe(ctx, "insert", "task_activity", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, `
			INSERT INTO task_activity (event_id, task_id, actor_id, kind, payload, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			a.EventID, a.TaskID, a.ActorID, a.Kind, []byte(a.Payload), a.OccurredAt.UTC()).Scan(&a.ID)
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
		return nil
	})
}

func (s *Store) ListTaskActivity(ctx context.Context, taskID int, page repository.Page) ([]model.Activity, error) {
	page = page.Normalize()
	out := []model.Activity{}
	err := s.observe(ctx, "select", "task_activity", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, `
			SELECT id, event_id, task_id, actor_id, kind, payload, occurred_at
			FROM task_activity WHERE task_id = $1
			ORDER BY occurred_at, id
			LIMIT $2 OFFSET $3`, taskID, page.Limit, page.Skip)
		if err != nil {
			return fmt.Errorf("list activity: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				a       model.Activity
				payload []byte
			)
			if err := rows.Scan(&a.ID, &a.EventID, &a.TaskID, &a.ActorID, &a.Kind, &payload, &a.OccurredAt); err != nil {
				return fmt.Errorf("scan activity: %w", err)
			}
			a.Payload = payload
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
