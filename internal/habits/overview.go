package habits

import (
	"math"
	"time"

	"github.com/ldi/cadence/pkg/models"
)

// HabitInput pairs a habit with its check days.
type HabitInput struct {
	Habit  models.Habit
	Checks []time.Time
}

// OverviewStats aggregates per-habit Stats. Averages are taken over active habits.
type OverviewStats struct {
	TotalHabits          int     `json:"total_habits"`
	ActiveHabits         int     `json:"active_habits"`
	DueToday             int     `json:"due_today"`
	CheckedToday         int     `json:"checked_today"`
	TodayCompletion      int     `json:"today_completion"`
	AverageCurrentStreak float64 `json:"average_current_streak"`
	BestStreak           int     `json:"best_streak"`
	AverageRate          int     `json:"average_rate"`
	AverageWeeklyRate    int     `json:"average_weekly_rate"`
	AverageMonthlyRate   int     `json:"average_monthly_rate"`
}

// Overview computes Stats for every habit and sums them up.
func Overview(inputs []HabitInput, asOf time.Time, loc *time.Location) (OverviewStats, []Stats) {
	all := make([]Stats, 0, len(inputs))
	var (
		ov                         OverviewStats
		streakSum                  int
		rateSum, weeklySum, monSum int
	)

	for _, in := range inputs {
		st := Compute(in.Habit, in.Checks, asOf, loc)
		all = append(all, st)

		ov.TotalHabits++
		if !in.Habit.Rule.Active {
			continue
		}
		ov.ActiveHabits++
		if st.DueToday {
			ov.DueToday++
		}
		if st.CheckedToday {
			ov.CheckedToday++
		}
		if st.Streaks.Longest > ov.BestStreak {
			ov.BestStreak = st.Streaks.Longest
		}
		streakSum += st.Streaks.Current
		rateSum += st.Rates.Total.Rate
		weeklySum += st.Rates.Weekly.Rate
		monSum += st.Rates.Monthly.Rate
	}

	ov.TodayCompletion = percent(ov.CheckedToday, ov.DueToday)
	if ov.ActiveHabits > 0 {
		n := float64(ov.ActiveHabits)
		ov.AverageCurrentStreak = math.Round(float64(streakSum)/n*100) / 100
		ov.AverageRate = int(math.Round(float64(rateSum) / n))
		ov.AverageWeeklyRate = int(math.Round(float64(weeklySum) / n))
		ov.AverageMonthlyRate = int(math.Round(float64(monSum) / n))
	}
	return ov, all
}
