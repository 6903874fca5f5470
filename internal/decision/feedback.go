package decision

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ldi/cadence/pkg/models"
)

// SaveUserFeedback records which candidate the user actually chose. A second
// call replaces the first.
func (e *Engine) SaveUserFeedback(ctx context.Context, logID, userID, choice string, feedback *string) error {
	if logID == "" || userID == "" {
		return fmt.Errorf("%w: decision log id and user id are required", models.ErrInvalidInput)
	}
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return fmt.Errorf("%w: user choice is required", models.ErrInvalidInput)
	}

	ok, err := e.store.UpdateDecisionFeedback(ctx, logID, userID, choice, feedback, e.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	if ok {
		return nil
	}

	// Nothing was written: either the log is missing or the choice is foreign.
	log, err := e.store.GetDecisionLog(ctx, logID, userID)
	if err != nil {
		return fmt.Errorf("failed to get decision log: %w", err)
	}
	if log == nil {
		return fmt.Errorf("%w: decision log %s", models.ErrNotFound, logID)
	}
	return fmt.Errorf("%w: %s is not a candidate of decision %s", models.ErrInvalidInput, choice, logID)
}

func (e *Engine) GetDecisionLog(ctx context.Context, logID, userID string) (*models.DecisionLog, error) {
	log, err := e.store.GetDecisionLog(ctx, logID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decision log: %w", err)
	}
	return log, nil
}

// FeedbackSummary reports how often the user followed the recommendation.
func (e *Engine) FeedbackSummary(ctx context.Context, userID string) (*models.FeedbackSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrInvalidInput)
	}
	s, err := e.store.GetFeedbackSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback summary: %w", err)
	}
	if s.WithFeedback > 0 {
		s.AcceptanceRate = math.Round(float64(s.Accepted)/float64(s.WithFeedback)*100) / 100
	} else {
		s.AcceptanceRate = 0
	}
	return s, nil
}
