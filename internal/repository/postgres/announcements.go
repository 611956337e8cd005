package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ventureops/internal/model"
	"ventureops/internal/repository"
)

const announcementColumns = `id, title, content, is_active, created_at`

func scanAnnouncement(row pgx.Row) (model.Announcement, error) {
	var a model.Announcement
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.IsActive, &a.CreatedAt)
	return a, err
}

func (s *Store) CreateAnnouncement(ctx context.Context, a *model.Announcement) error {
	return s.observe(ctx, "insert", "announcements", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, `
			INSERT INTO announcements (title, content, is_active, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			a.Title, a.Content, a.IsActive, a.CreatedAt.UTC()).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("create announcement: %w", err)
		}
		return nil
	})
}

func (s *Store) GetAnnouncement(ctx context.Context, id int) (model.Announcement, error) {
	var a model.Announcement
	err := s.observe(ctx, "select", "announcements", func(ctx context.Context) error {
		var err error
		a, err = scanAnnouncement(s.db.QueryRow(ctx,
			`SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get announcement %d: %w", id, err)
		}
		return nil
	})
	return a, err
}

func (s *Store) ListActiveAnnouncements(ctx context.Context, page repository.Page) ([]model.Announcement, error) {
	page = page.Normalize()
	out := []model.Announcement{}
	err := s.observe(ctx, "select", "announcements", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, `
			SELECT `+announcementColumns+` FROM announcements
			WHERE is_active
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2`, page.Limit, page.Skip)
		if err != nil {
			return fmt.Errorf("list announcements: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAnnouncement(rows)
			if err != nil {
				return fmt.Errorf("scan announcement: %w", err)
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AcknowledgeAnnouncement(ctx context.Context, ack *model.AnnouncementAck) error {
	return s.observe(ctx, "insert", "announcement_acks", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, `
			INSERT INTO announcement_acks (announcement_id, user_id, acknowledged_at)
			VALUES ($1, $2, $3)
			RETURNING id`,
			ack.AnnouncementID, ack.UserID, ack.AcknowledgedAt.UTC()).Scan(&ack.ID)
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("acknowledge announcement %d: %w", ack.AnnouncementID, err)
		}
		return nil
	})
}
