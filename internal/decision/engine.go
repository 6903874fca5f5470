// Package decision recommends which of several candidate tasks to do next and
// records the user's eventual choice against that recommendation.
package decision

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ldi/cadence/internal/scoring"
	"github.com/ldi/cadence/pkg/models"
)

// ConfidenceGapScale is the score gap at which confidence saturates.
const ConfidenceGapScale = 2.0

// maxConfidence keeps competing candidates from ever reaching certainty.
const maxConfidence = 0.99

// Store is the persistence the engine needs. Implementations enforce
// per-user ownership.
type Store interface {
	// GetTasksByIDs returns the distinct tasks among ids owned by userID.
	GetTasksByIDs(ctx context.Context, userID string, ids []string) ([]*models.Task, error)
	// CreateDecisionLog writes the log and its candidate rows in one transaction.
	CreateDecisionLog(ctx context.Context, log *models.DecisionLog) error
	// UpdateDecisionFeedback sets the feedback if the log belongs to userID and
	// choice is one of its candidates, reporting whether a row was written.
	UpdateDecisionFeedback(ctx context.Context, logID, userID, choice string, feedback *string, at time.Time) (bool, error)
	GetDecisionLog(ctx context.Context, logID, userID string) (*models.DecisionLog, error)
	GetFeedbackSummary(ctx context.Context, userID string) (*models.FeedbackSummary, error)
}

// Engine scores, ranks and explains candidate tasks.
type Engine struct {
	store    Store
	scorer   *scoring.Scorer
	scorerMu sync.RWMutex
	loc      *time.Location

	// Now is the clock used for scoring and timestamps.
	Now func() time.Time
	// GapScale is the score gap that yields maximum confidence.
	GapScale float64
}

func NewEngine(store Store, scorer *scoring.Scorer, loc *time.Location) *Engine {
	if scorer == nil {
		scorer = scoring.New(scoring.DefaultWeights())
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		store:    store,
		scorer:   scorer,
		loc:      loc,
		Now:      time.Now,
		GapScale: ConfidenceGapScale,
	}
}

func (e *Engine) Scorer() *scoring.Scorer {
	e.scorerMu.RLock()
	defer e.scorerMu.RUnlock()
	return e.scorer
}

// SetScorer swaps the scorer used by subsequent recommendations.
func (e *Engine) SetScorer(s *scoring.Scorer) {
	if s == nil {
		return
	}
	e.scorerMu.Lock()
	e.scorer = s
	e.scorerMu.Unlock()
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// RecommendNext scores the given candidates for userID and persists the
// resulting decision. It returns nil without error when fewer than two of the
// ids resolve to the user's tasks.
func (e *Engine) RecommendNext(ctx context.Context, taskIDs []string, userID string) (*models.Decision, error) {
	if len(taskIDs) < 2 {
		return nil, fmt.Errorf("%w: at least two task ids are required", models.ErrInvalidInput)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrInvalidInput)
	}

	tasks, err := e.store.GetTasksByIDs(ctx, userID, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var (
		resolved   []string
		candidates []*models.Task
		seen       = make(map[string]bool, len(byID))
	)
	for _, id := range taskIDs {
		t, ok := byID[id]
		if !ok {
			continue
		}
		resolved = append(resolved, id)
		if !seen[id] {
			seen[id] = true
			candidates = append(candidates, t)
		}
	}
	if len(resolved) < 2 {
		return nil, nil
	}

	now := e.Now()
	scores := e.Scorer().ScoreAll(candidates, now, e.loc)
	scoring.Rank(scores, byID)

	d := &models.Decision{
		RecommendedID: scores[0].TaskID,
		Scores:        scores,
		Reasons:       Reasons(scores[0]),
		Confidence:    Confidence(scores, e.GapScale),
		CreatedAt:     now.UTC(),
	}

	// Seeds are the first two distinct candidates; a single candidate seeds both.
	seedA, seedB := resolved[0], resolved[1]
	if len(candidates) >= 2 {
		seedA, seedB = candidates[0].ID, candidates[1].ID
	}
	logID, err := e.SaveDecisionLog(ctx, seedA, seedB, d, userID)
	if err != nil {
		return nil, err
	}
	d.LogID = logID
	return d, nil
}

// SaveDecisionLog persists d with seedA and seedB as the conventional pair of
// candidates and returns the new log id.
func (e *Engine) SaveDecisionLog(ctx context.Context, seedA, seedB string, d *models.Decision, userID string) (string, error) {
	if d == nil || len(d.Scores) == 0 {
		return "", fmt.Errorf("%w: decision has no scores", models.ErrInvalidInput)
	}
	if seedA == "" || seedB == "" || userID == "" {
		return "", fmt.Errorf("%w: seeds and user id are required", models.ErrInvalidInput)
	}

	candidates := make([]string, 0, len(d.Scores))
	recommended := false
	for _, s := range d.Scores {
		candidates = append(candidates, s.TaskID)
		if s.TaskID == d.RecommendedID {
			recommended = true
		}
	}
	if !recommended {
		return "", fmt.Errorf("%w: recommended task %s is not a scored candidate", models.ErrInvalidInput, d.RecommendedID)
	}

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = e.Now().UTC()
	}

	log := &models.DecisionLog{
		ID:            uuid.New().String(),
		UserID:        userID,
		TaskAID:       seedA,
		TaskBID:       seedB,
		CandidateIDs:  candidates,
		RecommendedID: d.RecommendedID,
		Scores:        d.Scores,
		Reasons:       d.Reasons,
		Confidence:    d.Confidence,
		CreatedAt:     createdAt,
	}
	if err := e.store.CreateDecisionLog(ctx, log); err != nil {
		return "", fmt.Errorf("failed to save decision log: %w", err)
	}
	return log.ID, nil
}

// Confidence maps the gap between the top two scores onto [1/n, 0.99] for n
// distinct candidates. A single candidate is certain.
func Confidence(ranked []models.Score, gapScale float64) float64 {
	n := len(ranked)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return 1
	}
	if gapScale <= 0 {
		gapScale = ConfidenceGapScale
	}

	floor := 1 / float64(n)
	gap := ranked[0].Score - ranked[1].Score
	c := floor + (maxConfidence-floor)*clamp01(gap/gapScale)
	return math.Round(c*100) / 100
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
