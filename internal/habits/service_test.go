package habits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldi/cadence/pkg/models"
)

type fakeStore struct {
	habits map[string]*models.Habit
	checks map[string][]time.Time
}

func (f *fakeStore) GetHabit(_ context.Context, id, userID string) (*models.Habit, error) {
	h, ok := f.habits[id]
	if !ok || h.UserID != userID {
		return nil, nil
	}
	return h, nil
}

func (f *fakeStore) ListHabits(_ context.Context, userID string) ([]*models.Habit, error) {
	var out []*models.Habit
	for _, id := range []string{"h1", "h2", "h3"} {
		if h, ok := f.habits[id]; ok && h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) ListChecks(_ context.Context, habitID string, _ *time.Location) ([]time.Time, error) {
	return f.checks[habitID], nil
}

func (f *fakeStore) ListUserChecks(_ context.Context, userID string, _ *time.Location) (map[string][]time.Time, error) {
	out := make(map[string][]time.Time)
	for id, cs := range f.checks {
		if h, ok := f.habits[id]; ok && h.UserID == userID {
			out[id] = cs
		}
	}
	return out, nil
}

func newService() *Service {
	created := day(time.March, 9)
	store := &fakeStore{
		habits: map[string]*models.Habit{
			"h1": {ID: "h1", UserID: "u1", Rule: daily, CreatedAt: created},
			"h2": {ID: "h2", UserID: "u1", Rule: monWedFri, CreatedAt: created},
			"h3": {ID: "h3", UserID: "u2", Rule: daily, CreatedAt: created},
		},
		checks: map[string][]time.Time{
			"h1": days(time.March, 9, 10, 11, 12, 13),
			"h2": days(time.March, 9, 11),
			"h3": days(time.March, 13),
		},
	}
	svc := NewService(store, time.UTC)
	svc.Now = func() time.Time { return asOf }
	return svc
}

func TestServiceHabitStats(t *testing.T) {
	svc := newService()

	st, err := svc.HabitStats(context.Background(), "h1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "h1", st.HabitID)
	assert.Equal(t, Streaks{Current: 5, Longest: 5}, st.Streaks)
	assert.True(t, st.DueToday)
	assert.True(t, st.CheckedToday)

	_, err = svc.HabitStats(context.Background(), "h3", "u1")
	assert.True(t, errors.Is(err, models.ErrNotFound), "another user's habit is not found")

	_, err = svc.HabitStats(context.Background(), "missing", "u1")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestServiceOverview(t *testing.T) {
	svc := newService()

	res, err := svc.Overview(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, res.Habits, 2)

	assert.Equal(t, 2, res.Overview.TotalHabits)
	assert.Equal(t, 2, res.Overview.ActiveHabits)
	assert.Equal(t, 2, res.Overview.DueToday)
	assert.Equal(t, 1, res.Overview.CheckedToday)
	assert.Equal(t, 50, res.Overview.TodayCompletion)
	assert.Equal(t, 5, res.Overview.BestStreak)

	empty, err := svc.Overview(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Overview.TotalHabits)
	assert.Empty(t, empty.Habits)
}
