package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ventureops/pkg/metrics"
	"ventureops/pkg/otel"
	"ventureops/pkg/trace"
	"ventureops/pkg/util"
)

// MessageHandler processes one message body. A returned error is classified
// with util.IsRetryableError.
type MessageHandler func(ctx context.Context, body []byte) error

// Disposition is what happens to a delivery after its handler ran.
type Disposition int

const (
	Ack Disposition = iota
	Requeue
	DeadLetter
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case DeadLetter:
		return "dlq"
	}
	return "unknown"
}

// Decide maps a handler error and its attempt number to a disposition.
// Retryable errors are requeued until maxRetries is exceeded.
func Decide(err error, attempt, maxRetries int64) (Disposition, string) {
	if err == nil {
		return Ack, ""
	}
	retryable, errType := util.IsRetryableError(err)
	if util.ShouldRetry(attempt, maxRetries, retryable) {
		return Requeue, errType
	}
	return DeadLetter, errType
}

type Consumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queue      string
	routingKey string
	handler    MessageHandler
	logger     *zap.Logger

	dlq        *Publisher
	retries    *util.RetryCounter
	maxRetries int64
}

// NewConsumer declares queueName bound to routingKey on exchange along with
// the matching DLQ queue.
func NewConsumer(url, exchange, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	fail := func(step string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to %s: %w", step, err)
	}
	if err := DeclareExchange(ch, exchange); err != nil {
		return fail("declare exchange", err)
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail("declare DLQ exchange", err)
	}
	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		return fail("declare DLQ queue", err)
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return fail("set qos", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", q.Name),
		zap.String("exchange", exchange),
	)
	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q.Name,
		routingKey: routingKey,
		logger:     logger,
		maxRetries: 3,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// WithDeadLetter enables DLQ parking and bounded retries.
func (c *Consumer) WithDeadLetter(dlq *Publisher, retries *util.RetryCounter, maxRetries int64) *Consumer {
	c.dlq = dlq
	c.retries = retries
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	return c
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is done or the channel closes. Every
// delivery is acked, requeued or dead-lettered exactly once.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	c.logger.Info("Consumer started",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s", c.queue)
			}
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(parent context.Context, msg amqp091.Delivery) {
	start := time.Now()
	ctx := parent
	if traceID, ok := msg.Headers[trace.HeaderName].(string); ok {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx, span := otel.MQConsumeSpan(ctx, msg.Headers, c.queue, c.routingKey)
	defer span.End()

	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue),
		zap.String("message_id", msg.MessageId),
		zap.String("trace_id", trace.FromContext(ctx)),
	)

	err := c.invoke(ctx, msg.Body)

	attempt := int64(1)
	if err != nil && c.retries != nil && msg.MessageId != "" {
		if n, rerr := c.retries.IncrementAndGet(ctx, c.routingKey+":"+msg.MessageId); rerr == nil {
			attempt = n
		} else {
			log.Warn("Retry counter unavailable", zap.Error(rerr))
		}
	}
	disposition, errType := Decide(err, attempt, c.maxRetries)
	if disposition == DeadLetter && c.dlq == nil {
		disposition = Requeue
	}

	switch disposition {
	case Ack:
		if aerr := msg.Ack(false); aerr != nil {
			log.Error("Failed to ack message", zap.Error(aerr))
		}
		if c.retries != nil && msg.MessageId != "" {
			_ = c.retries.Reset(ctx, c.routingKey+":"+msg.MessageId)
		}
	case Requeue:
		log.Warn("Handler failed, requeueing",
			zap.String("error_type", errType),
			zap.Int64("attempt", attempt),
			zap.Error(err),
		)
		if nerr := msg.Nack(false, true); nerr != nil {
			log.Error("Failed to nack message", zap.Error(nerr))
		}
	case DeadLetter:
		log.Error("Handler failed permanently, parking in DLQ",
			zap.String("error_type", errType),
			zap.Int64("attempt", attempt),
			zap.Error(err),
		)
		if perr := c.dlq.PublishToDLQ(ctx, c.routingKey, msg, err.Error(), errType); perr != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(perr))
			_ = msg.Nack(false, true)
			break
		}
		if aerr := msg.Ack(false); aerr != nil {
			log.Error("Failed to ack dead-lettered message", zap.Error(aerr))
		}
	}

	metrics.RecordMQConsumeResult(c.routingKey, disposition.String())
	metrics.RecordMQConsumeLatency(c.routingKey, c.queue, time.Since(start))
}

// invoke runs the handler, turning a panic into a permanent error.
func (c *Consumer) invoke(ctx context.Context, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", c.routingKey),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panic: %v: %w", r, util.ErrPermanent)
		}
	}()
	return c.handler(ctx, body)
}
