package model

import (
	"time"

	"ventureops/pkg/rbac"
)

type Status string

const (
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReview     Status = "REVIEW"
	StatusCompleted  Status = "COMPLETED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusAssigned, StatusInProgress, StatusReview, StatusCompleted}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// UserRef is the embedded summary of a task's assignee.
type UserRef struct {
	ID       int    `json:"id"`
	FullName string `json:"full_name"`
}

type Task struct {
	ID               int        `json:"id"`
	Title            string     `json:"title"`
	Description      *string    `json:"description"`
	Status           Status     `json:"status"`
	Priority         Priority   `json:"priority"`
	Progress         int        `json:"progress"`
	DueDate          *time.Time `json:"due_date"`
	AssigneeID       *int       `json:"assignee_id"`
	CreatorID        int        `json:"creator_id"`
	ActiveTimerStart *time.Time `json:"active_timer_start"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Materialized on read.
	VentureID *int      `json:"venture_id"`
	Assignee  *UserRef  `json:"assignee"`
	TimeLogs  []TimeLog `json:"time_logs"`
}

// TimerRunning reports whether the task is in the Running timer state.
func (t Task) TimerRunning() bool {
	return t.ActiveTimerStart != nil
}

// Owner returns the task's ownership for scope checks.
func (t Task) Owner() rbac.Owner {
	return rbac.Owner{SubjectID: t.AssigneeID, VentureID: t.VentureID}
}

// TaskSpec is the shared body of a fan-out creation.
type TaskSpec struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description *string    `json:"description"`
	Status      Status     `json:"status" validate:"omitempty,oneof=ASSIGNED IN_PROGRESS REVIEW COMPLETED"`
	Priority    Priority   `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Progress    *int       `json:"progress" validate:"omitempty,min=0,max=100"`
	DueDate     *time.Time `json:"due_date"`
}

// NewTask builds the record for one assignee, applying creation defaults.
func (s TaskSpec) NewTask(creatorID int, assigneeID *int, now time.Time) Task {
	t := Task{
		Title:       s.Title,
		Description: s.Description,
		Status:      s.Status,
		Priority:    s.Priority,
		DueDate:     s.DueDate,
		AssigneeID:  assigneeID,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = StatusAssigned
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if s.Progress != nil {
		t.Progress = *s.Progress
	}
	return t
}

// TaskPatch is a partial update. Only fields whose Set flag is true are applied.
type TaskPatch struct {
	Title       Optional[string]    `json:"title"`
	Description Optional[string]    `json:"description"`
	Status      Optional[Status]    `json:"status"`
	Priority    Optional[Priority]  `json:"priority"`
	Progress    Optional[int]       `json:"progress"`
	DueDate     Optional[time.Time] `json:"due_date"`
	AssigneeID  Optional[int]       `json:"assignee_id"`
}

// Fields returns the JSON names of the fields present in the patch.
func (p TaskPatch) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.Title.Set, "title")
	add(p.Description.Set, "description")
	add(p.Status.Set, "status")
	add(p.Priority.Set, "priority")
	add(p.Progress.Set, "progress")
	add(p.DueDate.Set, "due_date")
	add(p.AssigneeID.Set, "assignee_id")
	return out
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return len(p.Fields()) == 0
}

// Apply returns t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title.Set && p.Title.Value != nil {
		t.Title = *p.Title.Value
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.Status.Set && p.Status.Value != nil {
		t.Status = *p.Status.Value
	}
	if p.Priority.Set && p.Priority.Value != nil {
		t.Priority = *p.Priority.Value
	}
	if p.Progress.Set && p.Progress.Value != nil {
		t.Progress = *p.Progress.Value
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Value
	}
	if p.AssigneeID.Set {
		t.AssigneeID = p.AssigneeID.Value
	}
	return t
}
