package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ventureops/internal/model"
	"ventureops/internal/repository"
)

const timeLogFrom = `
	FROM time_logs tl
	JOIN tasks t ON t.id = tl.task_id
	LEFT JOIN users a ON a.id = t.assignee_id
	JOIN users c ON c.id = t.creator_id`

func scanTimeLog(row pgx.Row) (model.TimeLog, error) {
	var l model.TimeLog
	if err := row.Scan(&l.ID, &l.TaskID, &l.UserID, &l.StartTime, &l.EndTime, &l.DurationMinutes); err != nil {
		return model.TimeLog{}, err
	}
	l.StartTime = l.StartTime.UTC()
	l.EndTime = l.EndTime.UTC()
	return l, nil
}

func (s *Store) ListTimeLogs(ctx context.Context, filter repository.TimeLogFilter) ([]model.TimeLog, error) {
	logs := []model.TimeLog{}
	err := s.observe(ctx, "select", "time_logs", func(ctx context.Context) error {
		args := newArgs()
		rows, err := s.db.Query(ctx,
			`SELECT tl.id, tl.task_id, tl.user_id, tl.start_time, tl.end_time, tl.duration_minutes`+
				timeLogFrom+repository.TimeLogWhere(filter, args)+` ORDER BY tl.id`,
			args.Values...)
		if err != nil {
			return fmt.Errorf("list time logs: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			l, err := scanTimeLog(rows)
			if err != nil {
				return fmt.Errorf("scan time log: %w", err)
			}
			logs = append(logs, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) SumMinutes(ctx context.Context, filter repository.TimeLogFilter) (int, error) {
	var total int
	err := s.observe(ctx, "select", "time_logs", func(ctx context.Context) error {
		args := newArgs()
		err := s.db.QueryRow(ctx,
			`SELECT COALESCE(SUM(tl.duration_minutes), 0)`+timeLogFrom+repository.TimeLogWhere(filter, args),
			args.Values...).Scan(&total)
		if err != nil {
			return fmt.Errorf("sum minutes: %w", err)
		}
		return nil
	})
	return total, err
}
