package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldi/cadence/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestIsDueDaily(t *testing.T) {
	rule := models.RecurrenceRule{Type: models.RecurrenceDaily, Active: true}
	for i := 0; i < 10; i++ {
		assert.True(t, IsDue(rule, date(2026, 3, 1).AddDate(0, 0, i), time.UTC))
	}
}

func TestIsDueInactive(t *testing.T) {
	rule := models.RecurrenceRule{Type: models.RecurrenceDaily, Active: false}
	assert.False(t, IsDue(rule, date(2026, 3, 1), time.UTC))
}

func TestIsDueWeekly(t *testing.T) {
	rule := models.RecurrenceRule{
		Type:   models.RecurrenceWeekly,
		Days:   models.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday),
		Active: true,
	}

	// 2026-03-02 is a Monday.
	assert.True(t, IsDue(rule, date(2026, 3, 2), time.UTC))
	assert.False(t, IsDue(rule, date(2026, 3, 3), time.UTC))
	assert.True(t, IsDue(rule, date(2026, 3, 4), time.UTC))
	assert.False(t, IsDue(rule, date(2026, 3, 5), time.UTC))
	assert.True(t, IsDue(rule, date(2026, 3, 6), time.UTC))
	assert.False(t, IsDue(rule, date(2026, 3, 7), time.UTC))
	assert.False(t, IsDue(rule, date(2026, 3, 8), time.UTC))
}

func TestIsDueWeeklyWithoutDaysFailsClosed(t *testing.T) {
	rule := models.RecurrenceRule{Type: models.RecurrenceWeekly, Active: true}
	for i := 0; i < 7; i++ {
		assert.False(t, IsDue(rule, date(2026, 3, 2).AddDate(0, 0, i), time.UTC))
	}
}

func TestIsDueMonthly(t *testing.T) {
	rule := models.RecurrenceRule{
		Type:   models.RecurrenceMonthly,
		Active: true,
		Anchor: date(2026, 1, 15),
	}
	assert.True(t, IsDue(rule, date(2026, 2, 15), time.UTC))
	assert.True(t, IsDue(rule, date(2026, 3, 15), time.UTC))
	assert.False(t, IsDue(rule, date(2026, 3, 14), time.UTC))
}

func TestIsDueMonthlyNoClamping(t *testing.T) {
	rule := models.RecurrenceRule{
		Type:   models.RecurrenceMonthly,
		Active: true,
		Anchor: date(2026, 1, 31),
	}

	due := DueDates(rule, date(2026, 1, 1), date(2026, 6, 30), time.UTC)
	var keys []string
	for _, d := range due {
		keys = append(keys, d.Format(models.CheckDateLayout))
	}
	assert.Equal(t, []string{"2026-01-31", "2026-03-31", "2026-05-31"}, keys)
}

func TestIsDueMonthlyAnchorNormalizedToLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on the 1st is still the last day of the previous month in New York.
	anchor := time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC)
	rule := models.RecurrenceRule{Type: models.RecurrenceMonthly, Active: true, Anchor: anchor}

	assert.True(t, IsDue(rule, time.Date(2026, 5, 31, 10, 0, 0, 0, loc), loc))
	assert.False(t, IsDue(rule, time.Date(2026, 5, 1, 10, 0, 0, 0, loc), loc))
}

func TestIsDueUnknownType(t *testing.T) {
	rule := models.RecurrenceRule{Type: "hourly", Active: true}
	assert.False(t, IsDue(rule, date(2026, 3, 1), time.UTC))
}

func TestDueDatesInclusive(t *testing.T) {
	rule := models.RecurrenceRule{Type: models.RecurrenceDaily, Active: true}
	due := DueDates(rule, date(2026, 3, 1), date(2026, 3, 5), time.UTC)
	require.Len(t, due, 5)
	assert.Equal(t, "2026-03-01", Key(due[0], time.UTC))
	assert.Equal(t, "2026-03-05", Key(due[4], time.UTC))
}

func TestDueDatesEmptyRange(t *testing.T) {
	rule := models.RecurrenceRule{Type: models.RecurrenceDaily, Active: true}
	assert.Empty(t, DueDates(rule, date(2026, 3, 5), date(2026, 3, 1), time.UTC))
}

func TestKeyRoundTrip(t *testing.T) {
	d, err := ParseKey("2026-03-04", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-04", Key(d, time.UTC))
	assert.True(t, d.Equal(Day(d, time.UTC)))
}
