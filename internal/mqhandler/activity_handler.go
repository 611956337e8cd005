// Package mqhandler consumes task events and projects them into the
// task activity history.
package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	contractmq "ventureops/contracts/mq"
	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/logger"
	"ventureops/pkg/otel"
	"ventureops/pkg/trace"
	"ventureops/pkg/util"
)

// OnceGate reports whether a key is seen for the first time. Release
// forgets a key whose event could not be stored, so a redelivery is let in.
type OnceGate interface {
	AcquireOnce(ctx context.Context, key string) bool
	Release(ctx context.Context, key string) error
}

type ActivityHandler struct {
	kind   string
	repo   repository.ActivityRepository
	gate   OnceGate
	logger *zap.Logger
}

// NewActivityHandler projects events of one routing key. gate may be nil,
// in which case the unique event id in the store is the only guard.
func NewActivityHandler(routingKey string, repo repository.ActivityRepository, gate OnceGate, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{kind: routingKey, repo: repo, gate: gate, logger: logger}
}

// Handle records one event. Malformed payloads are permanent failures.
func (h *ActivityHandler) Handle(ctx context.Context, body []byte) error {
	var evt contractmq.TaskEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("decode %s event: %v: %w", h.kind, err, util.ErrPermanent)
	}
	if evt.EventID == "" || evt.TaskID <= 0 {
		return fmt.Errorf("%s event missing event_id or task_id: %w", h.kind, util.ErrPermanent)
	}
	ctx = trace.WithContext(ctx, evt.TraceID)
	ctx, span := otel.StartSpan(ctx, "activity.project "+h.kind)
	defer span.End()
	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("event_id", evt.EventID),
		zap.String("kind", h.kind),
		zap.Int("task_id", evt.TaskID),
	)

	if h.gate != nil && !h.gate.AcquireOnce(ctx, evt.EventID) {
		log.Info("Skipping duplicated event")
		return nil
	}

	a := &model.Activity{
		EventID:    evt.EventID,
		TaskID:     evt.TaskID,
		ActorID:    evt.ActorID,
		Kind:       h.kind,
		Payload:    json.RawMessage(body),
		OccurredAt: evt.OccurredAt.UTC(),
	}
	if err := h.repo.InsertActivity(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Info("Event already projected")
			return nil
		}
		log.Error("Failed to insert activity", zap.Error(err))
		if h.gate != nil {
			if rerr := h.gate.Release(context.WithoutCancel(ctx), evt.EventID); rerr != nil {
				log.Warn("Failed to release dedup key", zap.Error(rerr))
			}
		}
		return err
	}
	log.Info("Activity recorded", zap.Int("activity_id", a.ID))
	return nil
}
