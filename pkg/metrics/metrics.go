package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Queries slower than the configured threshold",
		},
	)

	TasksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_created_total",
			Help: "Tasks created, by creator role",
		},
		[]string{"role"},
	)

	TimerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_timer_transitions_total",
			Help: "Timer start/stop attempts by outcome",
		},
		[]string{"transition", "outcome"},
	)

	MinutesLogged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "time_log_minutes_total",
			Help: "Minutes appended to the time log ledger",
		},
	)

	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	MQConsumeResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mq_consume_results_total",
			Help: "Consumed messages by result (ack, requeue, dlq, duplicate)",
		},
		[]string{"routing_key", "result"},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_total",
			Help: "Outbox publish attempts by result",
		},
		[]string{"routing_key", "result"},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}

func IncrementTasksCreated(role string, n int) {
	TasksCreated.WithLabelValues(role).Add(float64(n))
}

func RecordTimerTransition(transition, outcome string) {
	TimerTransitions.WithLabelValues(transition, outcome).Inc()
}

func AddMinutesLogged(minutes int) {
	MinutesLogged.Add(float64(minutes))
}

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func RecordMQConsumeResult(routingKey, result string) {
	MQConsumeResults.WithLabelValues(routingKey, result).Inc()
}

func RecordOutboxPublish(routingKey, result string) {
	OutboxPublished.WithLabelValues(routingKey, result).Inc()
}
