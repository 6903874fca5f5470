package models

import "time"

// Factor is one weighted contribution to a candidate's score.
// Label is a machine-readable classification (e.g. "overdue"),
// Note a short human-readable detail.
type Factor struct {
	Name   string  `json:"name"`
	Raw    float64 `json:"raw"`
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"`
	Label  string  `json:"label,omitempty"`
	Note   string  `json:"note,omitempty"`
}

type Score struct {
	TaskID  string   `json:"task_id"`
	Score   float64  `json:"score"`
	Factors []Factor `json:"factors,omitempty"`
}

// Factor returns the named factor, or nil.
func (s Score) Factor(name string) *Factor {
	for i := range s.Factors {
		if s.Factors[i].Name == name {
			return &s.Factors[i]
		}
	}
	return nil
}

type Reason struct {
	Type        string `json:"type"`
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
}

// Decision is the result of one recommendation request.
type Decision struct {
	LogID         string    `json:"decision_log_id,omitempty"`
	RecommendedID string    `json:"recommended_id"`
	Scores        []Score   `json:"scores"`
	Reasons       []Reason  `json:"reasons"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     time.Time `json:"created_at"`
}

// DecisionLog is the persisted form of a Decision plus the user's later feedback.
type DecisionLog struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	TaskAID       string     `json:"task_a_id"`
	TaskBID       string     `json:"task_b_id"`
	CandidateIDs  []string   `json:"candidate_ids"`
	RecommendedID string     `json:"recommended_id"`
	Scores        []Score    `json:"scores"`
	Reasons       []Reason   `json:"reasons"`
	Confidence    float64    `json:"confidence"`
	CreatedAt     time.Time  `json:"created_at"`
	UserChoice    *string    `json:"user_choice,omitempty"`
	Feedback      *string    `json:"feedback,omitempty"`
	FeedbackAt    *time.Time `json:"feedback_at,omitempty"`
}

// HasCandidate reports whether id was considered by this decision.
func (l *DecisionLog) HasCandidate(id string) bool {
	for _, c := range l.CandidateIDs {
		if c == id {
			return true
		}
	}
	return false
}

type FeedbackSummary struct {
	Decisions      int     `json:"decisions"`
	WithFeedback   int     `json:"with_feedback"`
	Accepted       int     `json:"accepted"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}
