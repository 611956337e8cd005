package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ventureops/internal/model"
	"ventureops/internal/repository"
)

func scanAnnouncement(row scanner) (model.Announcement, error) {
	var (
		a         model.Announcement
		createdAt int64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Content, &a.IsActive, &createdAt); err != nil {
		return model.Announcement{}, err
	}
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}

func (s *Store) CreateAnnouncement(ctx context.Context, a *model.Announcement) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO announcements (title, content, is_active, created_at) VALUES (?, ?, ?, ?)`,
		a.Title, a.Content, a.IsActive, toMillis(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("announcement id: %w", err)
	}
	a.ID = int(id)
	return nil
}

func (s *Store) GetAnnouncement(ctx context.Context, id int) (model.Announcement, error) {
	a, err := scanAnnouncement(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, title, content, is_active, created_at FROM announcements WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Announcement{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Announcement{}, fmt.Errorf("get announcement %d: %w", id, err)
	}
	return a, nil
}

func (s *Store) ListActiveAnnouncements(ctx context.Context, page repository.Page) ([]model.Announcement, error) {
	page = page.Normalize()
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, title, content, is_active, created_at FROM announcements
		  WHERE is_active = 1 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()
	out := []model.Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AcknowledgeAnnouncement(ctx context.Context, ack *model.AnnouncementAck) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO announcement_acks (announcement_id, user_id, acknowledged_at) VALUES (?, ?, ?)`,
		ack.AnnouncementID, ack.UserID, toMillis(ack.AcknowledgedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("acknowledge announcement %d: %w", ack.AnnouncementID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ack id: %w", err)
	}
	ack.ID = int(id)
	return nil
}
