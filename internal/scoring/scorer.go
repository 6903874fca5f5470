// Package scoring computes explainable multi-factor scores for candidate tasks.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ldi/cadence/internal/recurrence"
	"github.com/ldi/cadence/pkg/models"
)

// Factor names, also used in score breakdowns.
const (
	FactorUrgency   = "urgency"
	FactorPriority  = "priority"
	FactorGoal      = "goal"
	FactorStaleness = "staleness"
)

// Urgency labels.
const (
	LabelOverdue     = "overdue"
	LabelDueToday    = "due_today"
	LabelUpcoming    = "upcoming"
	LabelUnscheduled = "unscheduled"
)

// Default weights and horizons.
const (
	UrgencyWeight      = 3.0
	PriorityWeight     = 2.0
	GoalWeight         = 0.5
	StalenessWeight    = 1.0
	UrgencyHorizonDays = 14.0
	StaleHorizonDays   = 30.0
	NeutralUrgency     = 0.3
)

// Raw urgency for a deadline that has not passed yet.
const (
	dueTodayUrgency = 0.9
	upcomingCeiling = 0.8
)

// Weights tunes how factors combine into a score.
type Weights struct {
	Urgency            float64 `yaml:"urgency" json:"urgency"`
	Priority           float64 `yaml:"priority" json:"priority"`
	Goal               float64 `yaml:"goal" json:"goal"`
	Staleness          float64 `yaml:"staleness" json:"staleness"`
	UrgencyHorizonDays float64 `yaml:"urgency_horizon_days" json:"urgency_horizon_days"`
	StaleHorizonDays   float64 `yaml:"stale_horizon_days" json:"stale_horizon_days"`
	NeutralUrgency     float64 `yaml:"neutral_urgency" json:"neutral_urgency"`
}

func DefaultWeights() Weights {
	return Weights{
		Urgency:            UrgencyWeight,
		Priority:           PriorityWeight,
		Goal:               GoalWeight,
		Staleness:          StalenessWeight,
		UrgencyHorizonDays: UrgencyHorizonDays,
		StaleHorizonDays:   StaleHorizonDays,
		NeutralUrgency:     NeutralUrgency,
	}
}

// Validate rejects weights that would make scores meaningless.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"urgency":   w.Urgency,
		"priority":  w.Priority,
		"goal":      w.Goal,
		"staleness": w.Staleness,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %s must be a non-negative number, got %v", name, v)
		}
	}
	if w.UrgencyHorizonDays <= 0 || w.StaleHorizonDays <= 0 {
		return fmt.Errorf("horizons must be positive")
	}
	if w.NeutralUrgency < 0 || w.NeutralUrgency > 1 {
		return fmt.Errorf("neutral urgency must be within [0,1], got %v", w.NeutralUrgency)
	}
	return nil
}

type Scorer struct {
	weights Weights
}

func New(w Weights) *Scorer {
	return &Scorer{weights: w}
}

func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score computes the score of a single task relative to now. Calendar-day
// comparisons (due today, all-day deadlines) use loc.
func (s *Scorer) Score(t *models.Task, now time.Time, loc *time.Location) models.Score {
	w := s.weights
	factors := []models.Factor{
		s.urgency(t, now, loc),
		factor(FactorPriority, priorityRaw(t.Priority), w.Priority, string(t.Priority), ""),
		s.goal(t),
		s.staleness(t, now),
	}

	total := 0.0
	for _, f := range factors {
		total += f.Value
	}

	return models.Score{
		TaskID:  t.ID,
		Score:   round2(total),
		Factors: factors,
	}
}

// ScoreAll scores tasks concurrently. Results keep the input order.
func (s *Scorer) ScoreAll(tasks []*models.Task, now time.Time, loc *time.Location) []models.Score {
	scores := make([]models.Score, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t *models.Task) {
			defer wg.Done()
			scores[i] = s.Score(t, now, loc)
		}(i, t)
	}
	wg.Wait()
	return scores
}

// Rank sorts scores descending. Ties go to the task created first, then to the lower ID.
func Rank(scores []models.Score, tasks map[string]*models.Task) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		ti, tj := tasks[scores[i].TaskID], tasks[scores[j].TaskID]
		if ti != nil && tj != nil && !ti.CreatedAt.Equal(tj.CreatedAt) {
			return ti.CreatedAt.Before(tj.CreatedAt)
		}
		return scores[i].TaskID < scores[j].TaskID
	})
}

func (s *Scorer) urgency(t *models.Task, now time.Time, loc *time.Location) models.Factor {
	w := s.weights
	if t.ScheduledAt == nil {
		return factor(FactorUrgency, w.NeutralUrgency, w.Urgency, LabelUnscheduled, "no scheduled date")
	}

	deadline := *t.ScheduledAt
	if t.AllDay {
		deadline = recurrence.Day(deadline, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	if now.After(deadline) {
		late := now.Sub(deadline).Hours() / 24
		return factor(FactorUrgency, 1, w.Urgency, LabelOverdue, fmt.Sprintf("overdue by %s", humanDays(late)))
	}
	if recurrence.Day(deadline, loc).Equal(recurrence.Day(now, loc)) {
		return factor(FactorUrgency, dueTodayUrgency, w.Urgency, LabelDueToday, "due today")
	}

	left := deadline.Sub(now).Hours() / 24
	raw := upcomingCeiling * clamp01((w.UrgencyHorizonDays-left)/w.UrgencyHorizonDays)
	return factor(FactorUrgency, raw, w.Urgency, LabelUpcoming, fmt.Sprintf("due in %s", humanDays(left)))
}

func (s *Scorer) goal(t *models.Task) models.Factor {
	if !t.HasGoal() {
		return factor(FactorGoal, 0, s.weights.Goal, "standalone", "")
	}
	return factor(FactorGoal, 1, s.weights.Goal, "linked", "part of a goal")
}

func (s *Scorer) staleness(t *models.Task, now time.Time) models.Factor {
	if !t.Status.Open() {
		return factor(FactorStaleness, 0, s.weights.Staleness, "closed", "")
	}
	age := now.Sub(t.CreatedAt).Hours() / 24
	if age < 0 {
		age = 0
	}
	raw := clamp01(age / s.weights.StaleHorizonDays)
	return factor(FactorStaleness, raw, s.weights.Staleness, "pending", fmt.Sprintf("pending for %s", humanDays(age)))
}

func priorityRaw(p models.Priority) float64 {
	switch p {
	case models.PriorityHigh:
		return 1
	case models.PriorityLow:
		return 0.1
	default:
		return 0.5
	}
}

func factor(name string, raw, weight float64, label, note string) models.Factor {
	return models.Factor{
		Name:   name,
		Raw:    round2(raw),
		Weight: weight,
		Value:  round2(raw * weight),
		Label:  label,
		Note:   note,
	}
}

func humanDays(d float64) string {
	n := int(math.Floor(d))
	switch {
	case n < 1:
		return "less than a day"
	case n == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", n)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
