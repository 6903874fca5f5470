package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/cadence/internal/habits"
)

var (
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	overviewStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// HabitRow is one habit line of a HabitStatsView.
type HabitRow struct {
	Title string
	Stats habits.Stats
}

// HabitStatsView renders today's habit state with streaks and rates, plus an
// optional overview box.
type HabitStatsView struct {
	Rows     []HabitRow
	Overview *habits.OverviewStats
	Width    int
}

func NewHabitStatsView(rows []HabitRow, overview *habits.OverviewStats, width int) *HabitStatsView {
	return &HabitStatsView{Rows: rows, Overview: overview, Width: width}
}

func (v *HabitStatsView) View() string {
	var out []string

	if v.Overview != nil {
		ov := v.Overview
		lines := []string{
			fmt.Sprintf("today %d/%d (%d%%)", ov.CheckedToday, ov.DueToday, ov.TodayCompletion),
			fmt.Sprintf("active %d of %d habits", ov.ActiveHabits, ov.TotalHabits),
			fmt.Sprintf("avg streak %.2f  best %d", ov.AverageCurrentStreak, ov.BestStreak),
			fmt.Sprintf("avg rate %d%%  7d %d%%  month %d%%", ov.AverageRate, ov.AverageWeeklyRate, ov.AverageMonthlyRate),
		}
		out = append(out, overviewStyle.Width(v.width()).Render(subTitleStyle.Render("Habits")+"\n"+strings.Join(lines, "\n")))
	}

	if len(v.Rows) == 0 {
		out = append(out, placeholderStyle.Render("No habits yet"))
		return strings.Join(out, "\n")
	}

	nameWidth := v.width() - 40
	if nameWidth < 8 {
		nameWidth = 8
	}
	for _, r := range v.Rows {
		st := r.Stats
		line := fmt.Sprintf("%s %-*s streak %3d (best %3d)  %3d%%  7d %3d%%",
			marker(st), nameWidth, truncate(r.Title, nameWidth),
			st.Streaks.Current, st.Streaks.Longest, st.Rates.Total.Rate, st.Rates.Weekly.Rate)
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func (v *HabitStatsView) width() int {
	if v.Width < 48 {
		return 48
	}
	return v.Width
}

// marker shows whether the habit is done, pending or not due today.
func marker(st habits.Stats) string {
	switch {
	case st.CheckedToday:
		return doneStyle.Render("[x]")
	case st.DueToday:
		return pendingStyle.Render("[ ]")
	default:
		return mutedStyle.Render(" - ")
	}
}
