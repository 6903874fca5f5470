// Package habits computes streak and completion-rate statistics for recurring habits.
package habits

import (
	"math"
	"time"

	"github.com/ldi/cadence/internal/recurrence"
	"github.com/ldi/cadence/pkg/models"
)

type Streaks struct {
	Current int `json:"current_streak"`
	Longest int `json:"longest_streak"`
}

// Window counts due days and checked due days inside one time window.
type Window struct {
	Checks   int `json:"checks"`
	Expected int `json:"expected"`
	Rate     int `json:"rate"`
}

type Rates struct {
	Total   Window `json:"total"`
	Weekly  Window `json:"weekly"`
	Monthly Window `json:"monthly"`
}

type Stats struct {
	HabitID      string  `json:"habit_id"`
	Streaks      Streaks `json:"streaks"`
	Rates        Rates   `json:"rates"`
	DueToday     bool    `json:"due_today"`
	CheckedToday bool    `json:"checked_today"`
}

// ComputeStreaks returns the current and longest run of checked due days
// between createdAt and asOf. If asOf itself is due but not yet checked it is
// skipped rather than breaking the current streak.
func ComputeStreaks(checks []time.Time, rule models.RecurrenceRule, createdAt, asOf time.Time, loc *time.Location) Streaks {
	due := recurrence.DueDates(rule, createdAt, asOf, loc)
	return streaks(due, checkSet(checks, loc), recurrence.Day(asOf, loc), loc)
}

// ComputeRates returns the check/expected counts and rates for the all-time,
// trailing 7 day and trailing calendar month windows ending at asOf.
func ComputeRates(checks []time.Time, rule models.RecurrenceRule, createdAt, asOf time.Time, loc *time.Location) Rates {
	due := recurrence.DueDates(rule, createdAt, asOf, loc)
	return rates(due, checkSet(checks, loc), recurrence.Day(asOf, loc), loc)
}

// Compute returns the full statistics for one habit as of asOf.
func Compute(h models.Habit, checks []time.Time, asOf time.Time, loc *time.Location) Stats {
	set := checkSet(checks, loc)
	today := recurrence.Day(asOf, loc)
	due := recurrence.DueDates(h.Rule, h.CreatedAt, asOf, loc)

	dueToday := len(due) > 0 && due[len(due)-1].Equal(today)
	return Stats{
		HabitID:      h.ID,
		Streaks:      streaks(due, set, today, loc),
		Rates:        rates(due, set, today, loc),
		DueToday:     dueToday,
		CheckedToday: dueToday && set[recurrence.Key(today, loc)],
	}
}

func streaks(due []time.Time, checked map[string]bool, today time.Time, loc *time.Location) Streaks {
	var s Streaks

	run := 0
	for _, d := range due {
		if checked[recurrence.Key(d, loc)] {
			run++
			if run > s.Longest {
				s.Longest = run
			}
		} else {
			run = 0
		}
	}

	i := len(due) - 1
	if i >= 0 && due[i].Equal(today) && !checked[recurrence.Key(due[i], loc)] {
		i--
	}
	for ; i >= 0 && checked[recurrence.Key(due[i], loc)]; i-- {
		s.Current++
	}
	return s
}

func rates(due []time.Time, checked map[string]bool, today time.Time, loc *time.Location) Rates {
	return Rates{
		Total:   window(due, checked, time.Time{}, loc),
		Weekly:  window(due, checked, today.AddDate(0, 0, -6), loc),
		Monthly: window(due, checked, monthAgo(today), loc),
	}
}

// monthAgo returns the first day of the calendar month ending at today:
// the same day one month back (clamped to that month's length), plus one day.
func monthAgo(today time.Time) time.Time {
	y, m, d := today.Date()
	first := time.Date(y, m-1, 1, 0, 0, 0, 0, today.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, today.Location()).AddDate(0, 0, 1)
}

// window counts the due days on or after from. due never extends past asOf.
func window(due []time.Time, checked map[string]bool, from time.Time, loc *time.Location) Window {
	var w Window
	for _, d := range due {
		if d.Before(from) {
			continue
		}
		w.Expected++
		if checked[recurrence.Key(d, loc)] {
			w.Checks++
		}
	}
	w.Rate = percent(w.Checks, w.Expected)
	return w
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func checkSet(checks []time.Time, loc *time.Location) map[string]bool {
	set := make(map[string]bool, len(checks))
	for _, c := range checks {
		set[recurrence.Key(c, loc)] = true
	}
	return set
}
