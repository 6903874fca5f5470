package models

import (
	"fmt"
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusTodo              TaskStatus = "todo"
	TaskStatusInProgress        TaskStatus = "in_progress"
	TaskStatusCompleted         TaskStatus = "completed"
	TaskStatusArchivedCompleted TaskStatus = "archived_completed"
	TaskStatusArchivedCancelled TaskStatus = "archived_cancelled"
)

// Open reports whether the task still waits for completion.
func (s TaskStatus) Open() bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusArchivedCompleted, TaskStatusArchivedCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityMid  Priority = "mid"
	PriorityLow  Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMid || p == PriorityLow
}

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	GoalID      string     `json:"goal_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	AllDay      bool       `json:"all_day"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HasGoal reports whether the task belongs to a goal.
func (t *Task) HasGoal() bool {
	return t.GoalID != ""
}

// ParseSchedule reads a deadline as a day (YYYY-MM-DD, all day), a local
// time (YYYY-MM-DD HH:MM) or RFC 3339. An empty string means unscheduled.
func ParseSchedule(s string, loc *time.Location) (*time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return &t, true, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return &t, false, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, false, nil
	}
	return nil, false, fmt.Errorf("%w: cannot parse schedule %q", ErrInvalidInput, s)
}
