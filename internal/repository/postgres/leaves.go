package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/rbac"
)

const leaveSelect = `
	SELECT l.id, l.user_id, l.leave_type, l.start_date, l.end_date, l.reason, l.status,
	       l.applied_at, l.reviewed_at, l.reviewed_by_id, u.venture_id
	FROM leaves l
	JOIN users u ON u.id = l.user_id`

func scanLeave(row pgx.Row) (model.Leave, error) {
	var (
		l          model.Leave
		start, end time.Time
	)
	err := row.Scan(&l.ID, &l.UserID, &l.LeaveType, &start, &end, &l.Reason, &l.Status,
		&l.AppliedAt, &l.ReviewedAt, &l.ReviewedByID, &l.VentureID)
	if err != nil {
		return model.Leave{}, err
	}
	l.StartDate = model.NewDate(start.Date())
	l.EndDate = model.NewDate(end.Date())
	return l, nil
}

func (s *Store) CreateLeave(ctx context.Context, l *model.Leave) error {
	return s.observe(ctx, "insert", "leaves", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, `
			INSERT INTO leaves (user_id, leave_type, start_date, end_date, reason, status, applied_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			l.UserID, string(l.LeaveType), l.StartDate.Time, l.EndDate.Time, l.Reason,
			string(l.Status), l.AppliedAt.UTC(),
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("create leave: %w", err)
		}
		return nil
	})
}

func (s *Store) GetLeave(ctx context.Context, id int) (model.Leave, error) {
	return s.getLeave(ctx, s.db, id)
}

func (s *Store) getLeave(ctx context.Context, q dbtx, id int) (model.Leave, error) {
	var l model.Leave
	err := s.observe(ctx, "select", "leaves", func(ctx context.Context) error {
		var err error
		l, err = scanLeave(q.QueryRow(ctx, leaveSelect+` WHERE l.id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get leave %d: %w", id, err)
		}
		return nil
	})
	return l, err
}

func (s *Store) ListLeaves(ctx context.Context, scope rbac.Scope, page repository.Page) ([]model.Leave, error) {
	page = page.Normalize()
	leaves := []model.Leave{}
	err := s.observe(ctx, "select", "leaves", func(ctx context.Context) error {
		args := newArgs()
		rows, err := s.db.Query(ctx,
			leaveSelect+` WHERE `+repository.ScopeClause(scope, repository.LeaveScopeColumns, args)+
				` ORDER BY l.id LIMIT `+args.Add(page.Limit)+` OFFSET `+args.Add(page.Skip),
			args.Values...)
		if err != nil {
			return fmt.Errorf("list leaves: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			l, err := scanLeave(rows)
			if err != nil {
				return fmt.Errorf("scan leave: %w", err)
			}
			leaves = append(leaves, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return leaves, nil
}

func (s *Store) ReviewLeave(ctx context.Context, id int, status model.LeaveStatus, reviewerID int, now time.Time) (model.Leave, error) {
	var leave model.Leave
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE leaves SET status = $1, reviewed_at = $2, reviewed_by_id = $3
			WHERE id = $4 AND status = $5`,
			string(status), now.UTC(), reviewerID, id, string(model.LeavePending))
		if err != nil {
			return fmt.Errorf("review leave %d: %w", id, err)
		}
		leave, err = s.getLeave(ctx, tx, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrStateChanged
		}
		return nil
	})
	if err != nil {
		return model.Leave{}, err
	}
	return leave, nil
}

func (s *Store) CreateHoliday(ctx context.Context, h *model.Holiday) error {
	return s.observe(ctx, "insert", "holidays", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx,
			`INSERT INTO holidays (name, date, venture_id) VALUES ($1, $2, $3) RETURNING id`,
			h.Name, h.Date.Time, h.VentureID).Scan(&h.ID)
		if err != nil {
			return fmt.Errorf("create holiday: %w", err)
		}
		return nil
	})
}

func (s *Store) ListHolidays(ctx context.Context, page repository.Page) ([]model.Holiday, error) {
	page = page.Normalize()
	holidays := []model.Holiday{}
	err := s.observe(ctx, "select", "holidays", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx,
			`SELECT id, name, date, venture_id FROM holidays ORDER BY date, id LIMIT $1 OFFSET $2`,
			page.Limit, page.Skip)
		if err != nil {
			return fmt.Errorf("list holidays: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				h    model.Holiday
				date time.Time
			)
			if err := rows.Scan(&h.ID, &h.Name, &date, &h.VentureID); err != nil {
				return fmt.Errorf("scan holiday: %w", err)
			}
			h.Date = model.NewDate(date.Date())
			holidays = append(holidays, h)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return holidays, nil
}
