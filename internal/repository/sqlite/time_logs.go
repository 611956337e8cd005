package sqlite

import (
	"context"
	"fmt"

	"ventureops/internal/model"
	"ventureops/internal/repository"
)

const timeLogFrom = ` FROM time_logs tl
  JOIN tasks t ON t.id = tl.task_id
  LEFT JOIN users a ON a.id = t.assignee_id
  JOIN users c ON c.id = t.creator_id`

func scanTimeLog(row scanner) (model.TimeLog, error) {
	var (
		l          model.TimeLog
		start, end int64
	)
	if err := row.Scan(&l.ID, &l.TaskID, &l.UserID, &start, &end, &l.DurationMinutes); err != nil {
		return model.TimeLog{}, err
	}
	l.StartTime = fromMillis(start)
	l.EndTime = fromMillis(end)
	return l, nil
}

func (s *Store) ListTimeLogs(ctx context.Context, filter repository.TimeLogFilter) ([]model.TimeLog, error) {
	args := newArgs()
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT tl.id, tl.task_id, tl.user_id, tl.start_time, tl.end_time, tl.duration_minutes`+
			timeLogFrom+repository.TimeLogWhere(filter, args)+` ORDER BY tl.id`,
		args.Values...)
	if err != nil {
		return nil, fmt.Errorf("list time logs: %w", err)
	}
	defer rows.Close()
	logs := []model.TimeLog{}
	for rows.Next() {
		l, err := scanTimeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) SumMinutes(ctx context.Context, filter repository.TimeLogFilter) (int, error) {
	args := newArgs()
	var total int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(tl.duration_minutes), 0)`+timeLogFrom+repository.TimeLogWhere(filter, args),
		args.Values...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum minutes: %w", err)
	}
	return total, nil
}
