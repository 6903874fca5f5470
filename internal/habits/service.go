package habits

import (
	"context"
	"fmt"
	"time"

	"github.com/ldi/cadence/pkg/models"
)

// Store is the persistence the habit statistics need.
type Store interface {
	GetHabit(ctx context.Context, id, userID string) (*models.Habit, error)
	ListHabits(ctx context.Context, userID string) ([]*models.Habit, error)
	ListChecks(ctx context.Context, habitID string, loc *time.Location) ([]time.Time, error)
	ListUserChecks(ctx context.Context, userID string, loc *time.Location) (map[string][]time.Time, error)
}

// Service loads habits and their checks and computes statistics for them.
type Service struct {
	store Store
	loc   *time.Location

	// Now is the as-of clock.
	Now func() time.Time
}

func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, Now: time.Now}
}

// HabitStats returns the statistics of one habit owned by userID.
func (s *Service) HabitStats(ctx context.Context, habitID, userID string) (*Stats, error) {
	h, err := s.store.GetHabit(ctx, habitID, userID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: habit %s", models.ErrNotFound, habitID)
	}
	checks, err := s.store.ListChecks(ctx, h.ID, s.loc)
	if err != nil {
		return nil, err
	}
	st := Compute(*h, checks, s.Now(), s.loc)
	return &st, nil
}

// OverviewResult is the aggregate view over all habits of a user plus the
// per-habit statistics it was built from.
type OverviewResult struct {
	Overview OverviewStats `json:"overview"`
	Habits   []Stats       `json:"habits"`
}

// Overview computes OverviewResult for every habit of userID.
func (s *Service) Overview(ctx context.Context, userID string) (*OverviewResult, error) {
	hs, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	checks, err := s.store.ListUserChecks(ctx, userID, s.loc)
	if err != nil {
		return nil, err
	}

	inputs := make([]HabitInput, 0, len(hs))
	for _, h := range hs {
		inputs = append(inputs, HabitInput{Habit: *h, Checks: checks[h.ID]})
	}
	ov, all := Overview(inputs, s.Now(), s.loc)
	return &OverviewResult{Overview: ov, Habits: all}, nil
}
