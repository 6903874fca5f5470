package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

func (r RecurrenceType) Valid() bool {
	return r == RecurrenceDaily || r == RecurrenceWeekly || r == RecurrenceMonthly
}

// WeekdaySet is a set of weekday indices, 0 = Sunday .. 6 = Saturday.
type WeekdaySet uint8

// NewWeekdaySet builds a set from weekdays. Out-of-range values are dropped.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool {
	return s == 0
}

// Days returns the members in ascending order.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// Ints returns the members as plain indices, the shape used on the wire.
func (s WeekdaySet) Ints() []int {
	out := make([]int, 0, 7)
	for _, d := range s.Days() {
		out = append(out, int(d))
	}
	return out
}

func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Ints())
}

// UnmarshalJSON accepts an array of weekday indices. Unlike the lenient
// storage decoding, out-of-range indices are rejected here.
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	var set WeekdaySet
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("weekday index %d out of range 0..6", d)
		}
		set = set.With(time.Weekday(d))
	}
	*s = set
	return nil
}

// RecurrenceRule decides on which calendar days a habit is due.
// Anchor is the owner's creation timestamp; monthly rules repeat on its day of month.
type RecurrenceRule struct {
	Type   RecurrenceType `json:"type"`
	Days   WeekdaySet     `json:"days"`
	Active bool           `json:"active"`
	Anchor time.Time      `json:"anchor"`
}

type Habit struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Rule      RecurrenceRule `json:"rule"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CheckDateLayout is the storage form of a check day.
const CheckDateLayout = "2006-01-02"

// Check marks one calendar day of a habit as done.
type Check struct {
	HabitID string `json:"habit_id"`
	Date    string `json:"date"`
}
