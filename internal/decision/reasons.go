package decision

import (
	"fmt"
	"sort"

	"github.com/ldi/cadence/internal/scoring"
	"github.com/ldi/cadence/pkg/models"
)

// Reason types.
const (
	ReasonOverdue      = "overdue"
	ReasonDueToday     = "due_today"
	ReasonDueSoon      = "due_soon"
	ReasonHighPriority = "high_priority"
	ReasonGoalLinked   = "goal_linked"
	ReasonLongPending  = "long_pending"
	ReasonBestScore    = "best_score"
)

// longPendingRaw is the staleness at which a task counts as long pending.
const longPendingRaw = 0.5

type contribution struct {
	reason models.Reason
	value  float64
}

// Reasons explains the top score from its own factor breakdown, largest
// contribution first. Factors that contributed nothing are never cited.
func Reasons(top models.Score) []models.Reason {
	var found []contribution
	add := func(typ string, f models.Factor, desc string) {
		found = append(found, contribution{
			reason: models.Reason{Type: typ, TaskID: top.TaskID, Description: desc},
			value:  f.Value,
		})
	}

	for _, f := range top.Factors {
		if f.Value <= 0 {
			continue
		}
		switch f.Name {
		case scoring.FactorUrgency:
			switch f.Label {
			case scoring.LabelOverdue:
				add(ReasonOverdue, f, "Task is "+f.Note)
			case scoring.LabelDueToday:
				add(ReasonDueToday, f, "Task is due today")
			case scoring.LabelUpcoming:
				add(ReasonDueSoon, f, "Task is "+f.Note)
			}
		case scoring.FactorPriority:
			if f.Label == string(models.PriorityHigh) {
				add(ReasonHighPriority, f, "Task has high priority")
			}
		case scoring.FactorGoal:
			add(ReasonGoalLinked, f, "Task is part of a goal")
		case scoring.FactorStaleness:
			if f.Raw >= longPendingRaw {
				add(ReasonLongPending, f, "Task has been "+f.Note)
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].value > found[j].value
	})

	reasons := make([]models.Reason, 0, len(found)+1)
	for _, c := range found {
		reasons = append(reasons, c.reason)
	}
	if len(reasons) == 0 {
		reasons = append(reasons, models.Reason{
			Type:        ReasonBestScore,
			TaskID:      top.TaskID,
			Description: fmt.Sprintf("Task has the highest overall score (%.2f)", top.Score),
		})
	}
	return reasons
}
