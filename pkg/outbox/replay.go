package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"ventureops/pkg/trace"
)

// ReplayService republishes outbox events on demand.
type ReplayService struct {
	store      Store
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
}

func NewReplayService(store Store, publisher Publisher, logger *zap.Logger) *ReplayService {
	return &ReplayService{store: store, publisher: publisher, logger: logger, maxRetries: 5}
}

// ReplayEvent publishes event id regardless of its status.
func (s *ReplayService) ReplayEvent(ctx context.Context, id int64) error {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if traceID := traceIDOf(event.Payload); traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	if err := s.publisher.PublishWithContext(ctx, event.RoutingKey, event.Payload, event.EventID); err != nil {
		if markErr := s.store.MarkFailed(ctx, id, s.maxRetries, err); markErr != nil {
			return fmt.Errorf("publish: %w (mark failed: %v)", err, markErr)
		}
		return fmt.Errorf("publish: %w", err)
	}
	if err := s.store.MarkSent(ctx, id); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// ReplayFailedEvents republishes up to limit failed events and returns how
// many succeeded.
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.store.FailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("load failed events: %w", err)
	}
	replayed := 0
	for _, event := range events {
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Replay failed", zap.Int64("id", event.ID), zap.Error(err))
			continue
		}
		replayed++
	}
	return replayed, nil
}

func traceIDOf(payload json.RawMessage) string {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.TraceID
}
