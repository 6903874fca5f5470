// Package recurrence decides on which calendar days a recurrence rule is due.
//
// All comparisons happen on calendar days in a single reference location:
// every timestamp is first truncated to midnight in that location.
package recurrence

import (
	"time"

	"github.com/ldi/cadence/pkg/models"
)

// Day returns midnight of t's calendar day in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Key formats the calendar day of t in loc the way checks are stored.
func Key(t time.Time, loc *time.Location) string {
	return Day(t, loc).Format(models.CheckDateLayout)
}

// ParseKey parses a stored check day into midnight in loc.
func ParseKey(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(models.CheckDateLayout, s, loc)
}

// IsDue reports whether rule has an occurrence on date's calendar day.
// Inactive rules, unknown types and weekly rules without days are never due.
func IsDue(rule models.RecurrenceRule, date time.Time, loc *time.Location) bool {
	if !rule.Active {
		return false
	}

	day := Day(date, loc)
	switch rule.Type {
	case models.RecurrenceDaily:
		return true
	case models.RecurrenceWeekly:
		return rule.Days.Has(day.Weekday())
	case models.RecurrenceMonthly:
		// No clamping: an anchor on the 31st skips 30-day months.
		return day.Day() == Day(rule.Anchor, loc).Day()
	default:
		return false
	}
}

// DueDates returns every due day in [from, to], both inclusive, in ascending order.
func DueDates(rule models.RecurrenceRule, from, to time.Time, loc *time.Location) []time.Time {
	start := Day(from, loc)
	end := Day(to, loc)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsDue(rule, d, loc) {
			days = append(days, d)
		}
	}
	return days
}
