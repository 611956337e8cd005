package mq

import "time"

// Routing keys on the events exchange.
const (
	RoutingTaskCreated  = "task.created"
	RoutingTaskUpdated  = "task.updated"
	RoutingTimerStarted = "timer.started"
	RoutingTimerStopped = "timer.stopped"
)

// TaskEvent is the common envelope of every task-related event.
type TaskEvent struct {
	EventID    string    `json:"event_id"`
	TaskID     int       `json:"task_id"`
	ActorID    int       `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}

type TaskCreatedPayload struct {
	TaskEvent
	Title      string `json:"title"`
	AssigneeID *int   `json:"assignee_id"`
	Priority   string `json:"priority"`
}

type TaskUpdatedPayload struct {
	TaskEvent
	Fields []string `json:"fields"`
	Status string   `json:"status"`
}

type TimerStartedPayload struct {
	TaskEvent
	StartedAt time.Time `json:"started_at"`
}

type TimerStoppedPayload struct {
	TaskEvent
	TimeLogID       int       `json:"time_log_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
}
