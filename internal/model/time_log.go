package model

import (
	"math"
	"time"
)

// TimeLog is one measured work interval. Immutable once written.
type TimeLog struct {
	ID              int       `json:"id"`
	TaskID          int       `json:"task_id"`
	UserID          int       `json:"user_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

// DurationMinutes rounds end-start to whole minutes, never below zero.
// Half minutes round up (2m30s -> 3), not to even.
func DurationMinutes(start, end time.Time) int {
	minutes := math.Round(end.Sub(start).Seconds() / 60)
	if minutes < 0 {
		return 0
	}
	return int(minutes)
}
