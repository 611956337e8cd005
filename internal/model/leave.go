package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "PENDING"
	LeaveApproved LeaveStatus = "APPROVED"
	LeaveRejected LeaveStatus = "REJECTED"
)

type LeaveType string

const (
	LeaveSick   LeaveType = "SICK"
	LeaveCasual LeaveType = "CASUAL"
	LeaveAnnual LeaveType = "ANNUAL"
	LeaveOther  LeaveType = "OTHER"
)

type Leave struct {
	ID           int         `json:"id"`
	UserID       int         `json:"user_id"`
	LeaveType    LeaveType   `json:"leave_type"`
	StartDate    Date        `json:"start_date"`
	EndDate      Date        `json:"end_date"`
	Reason       *string     `json:"reason"`
	Status       LeaveStatus `json:"status"`
	AppliedAt    time.Time   `json:"applied_at"`
	ReviewedAt   *time.Time  `json:"reviewed_at"`
	ReviewedByID *int        `json:"reviewed_by_id"`

	// Materialized on read: the requester's venture.
	VentureID *int `json:"-"`
}

type Holiday struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Date      Date   `json:"date"`
	VentureID *int   `json:"venture_id"`
}

type Announcement struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type AnnouncementAck struct {
	ID             int       `json:"id"`
	AnnouncementID int       `json:"announcement_id"`
	UserID         int       `json:"user_id"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}
