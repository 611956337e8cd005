package outbox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ventureops/pkg/circuitbreaker"
	"ventureops/pkg/metrics"
	"ventureops/pkg/trace"
)

// Publisher sends one encoded event.
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, body []byte, messageID string) error
}

// Dispatcher polls pending events and publishes them through a circuit
// breaker.
type Dispatcher struct {
	store      Store
	publisher  Publisher
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

func NewDispatcher(store Store, publisher Publisher, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Dispatcher {
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	return &Dispatcher{
		store:      store,
		publisher:  publisher,
		breaker:    breaker,
		logger:     logger,
		maxRetries: 5,
		interval:   time.Second,
		batchSize:  100,
	}
}

func (d *Dispatcher) WithMaxRetries(n int) *Dispatcher {
	if n > 0 {
		d.maxRetries = n
	}
	return d
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Dispatcher) WithBatchSize(n int) *Dispatcher {
	if n > 0 {
		d.batchSize = n
	}
	return d
}

// Start runs until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting outbox dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.ProcessPending(ctx)
		}
	}
}

// ProcessPending publishes one batch and returns how many events were sent.
// It stops early while the breaker is open.
func (d *Dispatcher) ProcessPending(ctx context.Context) int {
	events, err := d.store.PendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to load pending outbox events", zap.Error(err))
		return 0
	}
	sent := 0
	for _, event := range events {
		err := d.breaker.Execute(func() error {
			return d.publish(ctx, event)
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			d.logger.Warn("Broker circuit open, pausing outbox dispatch",
				zap.Int("remaining", len(events)-sent),
			)
			metrics.RecordOutboxPublish(event.RoutingKey, "circuit_open")
			return sent
		}
		if err != nil {
			d.logger.Error("Failed to publish outbox event",
				zap.Int64("id", event.ID),
				zap.String("event_id", event.EventID),
				zap.String("routing_key", event.RoutingKey),
				zap.Error(err),
			)
			metrics.RecordOutboxPublish(event.RoutingKey, "error")
			if err := d.store.MarkFailed(ctx, event.ID, d.maxRetries, err); err != nil {
				d.logger.Error("Failed to mark outbox event failed", zap.Int64("id", event.ID), zap.Error(err))
			}
			continue
		}
		if err := d.store.MarkSent(ctx, event.ID); err != nil {
			d.logger.Error("Failed to mark outbox event sent", zap.Int64("id", event.ID), zap.Error(err))
			continue
		}
		metrics.RecordOutboxPublish(event.RoutingKey, "sent")
		sent++
	}
	if sent > 0 {
		d.logger.Debug("Outbox batch dispatched", zap.Int("sent", sent))
	}
	return sent
}

func (d *Dispatcher) publish(ctx context.Context, event Event) error {
	if traceID := traceIDOf(event.Payload); traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	return d.publisher.PublishWithContext(ctx, event.RoutingKey, event.Payload, event.EventID)
}
