package components

import (
	"strings"
	"testing"

	"github.com/ldi/cadence/internal/habits"
	"github.com/ldi/cadence/pkg/models"
)

func sampleDecision() *models.Decision {
	return &models.Decision{
		LogID:         "log-1",
		RecommendedID: "a",
		Confidence:    0.87,
		Scores: []models.Score{
			{TaskID: "a", Score: 5.07, Factors: []models.Factor{
				{Name: "urgency", Value: 3, Label: "overdue", Note: "overdue by 1 day"},
			}},
			{TaskID: "b", Score: 1.4},
		},
		Reasons: []models.Reason{
			{Type: "overdue", TaskID: "a", Description: "Task is overdue by 1 day"},
		},
	}
}

func TestDecisionView(t *testing.T) {
	v := NewDecisionView(sampleDecision(), map[string]string{"a": "File taxes", "b": "Tidy desk"}, 60)
	view := v.View()

	for _, want := range []string{"Do next", "→ File taxes", "confidence 87%", "• Task is overdue by 1 day", "Ranking", "1. File taxes", "2. Tidy desk", "5.07", "decision log-1"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q\n%s", want, view)
		}
	}
	if strings.Contains(view, "urgency") {
		t.Errorf("expected no breakdown unless requested")
	}

	v.Breakdown = true
	if !strings.Contains(v.View(), "urgency") {
		t.Errorf("expected factor breakdown when requested")
	}
}

func TestDecisionViewFallsBackToIDs(t *testing.T) {
	view := NewDecisionView(sampleDecision(), nil, 60).View()
	if !strings.Contains(view, "→ a") {
		t.Errorf("expected bare id when no title is known\n%s", view)
	}
}

func TestDecisionViewEmpty(t *testing.T) {
	view := NewDecisionView(nil, nil, 60).View()
	if !strings.Contains(view, "No recommendation") {
		t.Errorf("expected placeholder for nil decision")
	}
}

func TestHabitStatsView(t *testing.T) {
	rows := []HabitRow{
		{Title: "Read", Stats: habits.Stats{
			Streaks:      habits.Streaks{Current: 5, Longest: 7},
			Rates:        habits.Rates{Total: habits.Window{Rate: 90}, Weekly: habits.Window{Rate: 100}},
			DueToday:     true,
			CheckedToday: true,
		}},
		{Title: "Swim", Stats: habits.Stats{DueToday: true}},
		{Title: "Budget", Stats: habits.Stats{}},
	}
	ov := &habits.OverviewStats{TotalHabits: 3, ActiveHabits: 3, DueToday: 2, CheckedToday: 1, TodayCompletion: 50, BestStreak: 7}

	view := NewHabitStatsView(rows, ov, 80).View()
	for _, want := range []string{"today 1/2 (50%)", "best 7", "[x] Read", "[ ] Swim", "-  Budget", "streak   5 (best   7)", " 90%"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q\n%s", want, view)
		}
	}
}

func TestHabitStatsViewEmpty(t *testing.T) {
	view := NewHabitStatsView(nil, nil, 80).View()
	if !strings.Contains(view, "No habits yet") {
		t.Errorf("expected placeholder when there are no habits")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("expected abc…, got %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}
