// Package announcement publishes notices and records acknowledgements.
package announcement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/apperr"
	"ventureops/pkg/rbac"
	"ventureops/pkg/validate"
)

type CreateRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required"`
}

type Service struct {
	announcements repository.AnnouncementRepository
	now           func() time.Time
}

func NewService(announcements repository.AnnouncementRepository) *Service {
	return &Service{announcements: announcements, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Active lists active announcements, newest first.
func (s *Service) Active(ctx context.Context, page repository.Page) ([]model.Announcement, error) {
	return s.announcements.ListActiveAnnouncements(ctx, page)
}

func (s *Service) Publish(ctx context.Context, p rbac.Principal, req CreateRequest) (model.Announcement, error) {
	if err := rbac.CanPublishAnnouncements(p); err != nil {
		return model.Announcement{}, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Struct(req); err != nil {
		return model.Announcement{}, err
	}
	a := model.Announcement{Title: req.Title, Content: req.Content, IsActive: true, CreatedAt: s.now().UTC()}
	if err := s.announcements.CreateAnnouncement(ctx, &a); err != nil {
		return model.Announcement{}, fmt.Errorf("create announcement: %w", err)
	}
	return a, nil
}

// Acknowledge records that p has read announcement id. Each principal may
// acknowledge once.
func (s *Service) Acknowledge(ctx context.Context, p rbac.Principal, id int) (model.AnnouncementAck, error) {
	a, err := s.announcements.GetAnnouncement(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !a.IsActive) {
		return model.AnnouncementAck{}, apperr.NotFound("announcement %d not found", id)
	}
	if err != nil {
		return model.AnnouncementAck{}, err
	}
	ack := model.AnnouncementAck{AnnouncementID: id, UserID: p.ID, AcknowledgedAt: s.now().UTC()}
	if err := s.announcements.AcknowledgeAnnouncement(ctx, &ack); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.AnnouncementAck{}, apperr.Conflict("announcement %d already acknowledged", id)
		}
		return model.AnnouncementAck{}, fmt.Errorf("acknowledge announcement %d: %w", id, err)
	}
	return ack, nil
}
