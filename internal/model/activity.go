package model

import (
	"encoding/json"
	"time"
)

// Activity is one entry of a task's history, projected from domain events.
type Activity struct {
	ID         int             `json:"id"`
	EventID    string          `json:"event_id"`
	TaskID     int             `json:"task_id"`
	ActorID    int             `json:"actor_id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}
