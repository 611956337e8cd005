package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/rbac"
)

const leaveSelect = `SELECT l.id, l.user_id, l.leave_type, l.start_date, l.end_date, l.reason, l.status,
       l.applied_at, l.reviewed_at, l.reviewed_by_id, u.venture_id
  FROM leaves l
  JOIN users u ON u.id = l.user_id`

func scanLeave(row scanner) (model.Leave, error) {
	var (
		l            model.Leave
		start, end   string
		reason       sql.NullString
		appliedAt    int64
		reviewedAt   sql.NullInt64
		reviewedByID sql.NullInt64
		ventureID    sql.NullInt64
	)
	if err := row.Scan(&l.ID, &l.UserID, &l.LeaveType, &start, &end, &reason, &l.Status,
		&appliedAt, &reviewedAt, &reviewedByID, &ventureID); err != nil {
		return model.Leave{}, err
	}
	var err error
	if l.StartDate, err = model.ParseDate(start); err != nil {
		return model.Leave{}, err
	}
	if l.EndDate, err = model.ParseDate(end); err != nil {
		return model.Leave{}, err
	}
	l.Reason = stringPtr(reason)
	l.AppliedAt = fromMillis(appliedAt)
	l.ReviewedAt = millisPtr(reviewedAt)
	l.ReviewedByID = intPtr(reviewedByID)
	l.VentureID = intPtr(ventureID)
	return l, nil
}

func (s *Store) CreateLeave(ctx context.Context, l *model.Leave) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO leaves (user_id, leave_type, start_date, end_date, reason, status, applied_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.UserID, string(l.LeaveType), l.StartDate.String(), l.EndDate.String(), nullString(l.Reason),
		string(l.Status), toMillis(l.AppliedAt))
	if err != nil {
		return fmt.Errorf("create leave: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("leave id: %w", err)
	}
	l.ID = int(id)
	return nil
}

func (s *Store) GetLeave(ctx context.Context, id int) (model.Leave, error) {
	l, err := scanLeave(s.sqlDB.QueryRowContext(ctx, leaveSelect+` WHERE l.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Leave{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Leave{}, fmt.Errorf("get leave %d: %w", id, err)
	}
	return l, nil
}

func (s *Store) ListLeaves(ctx context.Context, scope rbac.Scope, page repository.Page) ([]model.Leave, error) {
	page = page.Normalize()
	args := newArgs()
	rows, err := s.sqlDB.QueryContext(ctx,
		leaveSelect+` WHERE `+repository.ScopeClause(scope, repository.LeaveScopeColumns, args)+
			` ORDER BY l.id LIMIT `+args.Add(page.Limit)+` OFFSET `+args.Add(page.Skip),
		args.Values...)
	if err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	defer rows.Close()
	leaves := []model.Leave{}
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leave: %w", err)
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

func (s *Store) ReviewLeave(ctx context.Context, id int, status model.LeaveStatus, reviewerID int, now time.Time) (model.Leave, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE leaves SET status = ?, reviewed_at = ?, reviewed_by_id = ?
		  WHERE id = ? AND status = ?`,
		string(status), toMillis(now), reviewerID, id, string(model.LeavePending))
	if err != nil {
		return model.Leave{}, fmt.Errorf("review leave %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetLeave(ctx, id); err != nil {
			return model.Leave{}, err
		}
		return model.Leave{}, repository.ErrStateChanged
	}
	return s.GetLeave(ctx, id)
}

func (s *Store) CreateHoliday(ctx context.Context, h *model.Holiday) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO holidays (name, date, venture_id) VALUES (?, ?, ?)`,
		h.Name, h.Date.String(), nullInt(h.VentureID))
	if err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("holiday id: %w", err)
	}
	h.ID = int(id)
	return nil
}

func (s *Store) ListHolidays(ctx context.Context, page repository.Page) ([]model.Holiday, error) {
	page = page.Normalize()
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, date, venture_id FROM holidays ORDER BY date, id LIMIT ? OFFSET ?`,
		page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()
	holidays := []model.Holiday{}
	for rows.Next() {
		var (
			h         model.Holiday
			date      string
			ventureID sql.NullInt64
		)
		if err := rows.Scan(&h.ID, &h.Name, &date, &ventureID); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		if h.Date, err = model.ParseDate(date); err != nil {
			return nil, err
		}
		h.VentureID = intPtr(ventureID)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
