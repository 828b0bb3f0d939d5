package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusOpen indicates the task still needs doing.
	TaskStatusOpen TaskStatus = "open"
	// TaskStatusComplete indicates the task has been marked done.
	// A complete task never returns to open.
	TaskStatusComplete TaskStatus = "complete"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusComplete:
		return true
	default:
		return false
	}
}

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time of day. The zero value means "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d falls before o.
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// After reports whether d falls after o.
func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

// MarshalJSON encodes d as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a YYYY-MM-DD string. An empty string yields the zero Date.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Task represents one item in the task store.
type Task struct {
	// ID is assigned by the store on creation and never changes.
	ID int64 `json:"id"`
	// Description is what needs doing.
	Description string `json:"description"`
	// DueDate is the optional day the task is due.
	DueDate *Date `json:"due_date,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task was completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsComplete reports whether the task has been marked done.
func (t Task) IsComplete() bool {
	return t.Status == TaskStatusComplete
}

// Overdue reports whether an open task's due date is before today.
func (t Task) Overdue(today Date) bool {
	return !t.IsComplete() && t.DueDate != nil && t.DueDate.Before(today)
}

// DueWithin reports whether the task's due date falls in [start, end].
func (t Task) DueWithin(start, end Date) bool {
	if t.DueDate == nil {
		return false
	}
	return !t.DueDate.Before(start) && !t.DueDate.After(end)
}

// TaskFilter narrows a task listing. Zero values match everything.
type TaskFilter struct {
	Status TaskStatus
}

// TaskSummary is an overview of the task collection.
type TaskSummary struct {
	Summary   string `json:"summary"`
	Pending   []Task `json:"pending"`
	Completed []Task `json:"completed"`
	Overdue   []Task `json:"overdue"`
	Total     int    `json:"total"`
}
