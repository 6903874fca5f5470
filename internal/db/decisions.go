package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ldi/cadence/pkg/models"
)

const decisionColumns = `id, user_id, task_a_id, task_b_id, recommended_id, scores, reasons,
	confidence, created_at, user_choice, feedback, feedback_at`

// CreateDecisionLog writes the log row and one row per candidate in a single
// transaction.
func (db *DB) CreateDecisionLog(ctx context.Context, l *models.DecisionLog) error {
	if l.ID == "" || l.UserID == "" {
		return fmt.Errorf("%w: decision log id and user are required", models.ErrInvalidInput)
	}
	if !l.HasCandidate(l.RecommendedID) {
		return fmt.Errorf("%w: recommended task %s is not a candidate", models.ErrInvalidInput, l.RecommendedID)
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", models.ErrInvalidInput, l.Confidence)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = db.timestamp()
	}

	scores, err := json.Marshal(l.Scores)
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}
	reasons, err := json.Marshal(l.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	t, err := db.begin(ctx)
	if err != nil {
		return err
	}
	defer t.Rollback()

	query := `
		INSERT INTO decision_logs (id, user_id, task_a_id, task_b_id, recommended_id, scores, reasons, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = t.ExecContext(ctx, query,
		l.ID, l.UserID, l.TaskAID, l.TaskBID, l.RecommendedID, string(scores), string(reasons),
		l.Confidence, l.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision log: %w", err)
	}

	for i, id := range l.CandidateIDs {
		_, err := t.ExecContext(ctx,
			`INSERT INTO decision_candidates (decision_log_id, task_id, position) VALUES (?, ?, ?)`,
			l.ID, id, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert decision candidate %s: %w", id, err)
		}
	}

	if err := t.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// UpdateDecisionFeedback records the user's choice in one conditional
// statement. It reports false, without error, when the log does not belong to
// userID or choice is not one of its candidates.
func (db *DB) UpdateDecisionFeedback(ctx context.Context, logID, userID, choice string, feedback *string, at time.Time) (bool, error) {
	query := `
		UPDATE decision_logs
		SET user_choice = ?, feedback = ?, feedback_at = ?
		WHERE id = ? AND user_id = ?
		  AND EXISTS (
			SELECT 1 FROM decision_candidates c
			WHERE c.decision_log_id = decision_logs.id AND c.task_id = ?
		  )
	`
	res, err := db.ExecContext(ctx, query, choice, feedback, at.UTC(), logID, userID, choice)
	if err != nil {
		return false, fmt.Errorf("failed to update decision feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	db.triggerChange(ctx)
	return true, nil
}

// GetDecisionLog retrieves a decision log owned by userID. Returns nil if there is none.
func (db *DB) GetDecisionLog(ctx context.Context, id, userID string) (*models.DecisionLog, error) {
	query := `SELECT ` + decisionColumns + ` FROM decision_logs WHERE id = ? AND user_id = ?`
	l, err := scanDecisionLog(db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision log: %w", err)
	}

	ids, err := db.candidateIDs(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	l.CandidateIDs = ids
	return l, nil
}

// ListDecisionLogs returns the user's decision logs, newest first. An empty
// userID lists every user's logs. limit <= 0 means no limit.
func (db *DB) ListDecisionLogs(ctx context.Context, userID string, limit int) ([]*models.DecisionLog, error) {
	query := `SELECT ` + decisionColumns + ` FROM decision_logs`
	var args []any
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY created_at DESC, id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	logs, err := func() ([]*models.DecisionLog, error) {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to list decision logs: %w", err)
		}
		defer rows.Close()

		var logs []*models.DecisionLog
		for rows.Next() {
			l, err := scanDecisionLog(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to scan decision log: %w", err)
			}
			logs = append(logs, l)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows error: %w", err)
		}
		return logs, nil
	}()
	if err != nil {
		return nil, err
	}

	// Rows are closed before the follow-up queries: SQLite has a single connection.
	for _, l := range logs {
		ids, err := db.candidateIDs(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		l.CandidateIDs = ids
	}
	return logs, nil
}

// GetFeedbackSummary counts the user's decisions, those with feedback and
// those where the user followed the recommendation.
func (db *DB) GetFeedbackSummary(ctx context.Context, userID string) (*models.FeedbackSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(user_choice),
		       COALESCE(SUM(CASE WHEN user_choice = recommended_id THEN 1 ELSE 0 END), 0)
		FROM decision_logs
		WHERE user_id = ?
	`
	s := &models.FeedbackSummary{}
	if err := db.QueryRowContext(ctx, query, userID).Scan(&s.Decisions, &s.WithFeedback, &s.Accepted); err != nil {
		return nil, fmt.Errorf("failed to get feedback summary: %w", err)
	}
	return s, nil
}

func (db *DB) candidateIDs(ctx context.Context, logID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT task_id FROM decision_candidates WHERE decision_log_id = ? ORDER BY position`, logID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan decision candidate: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

func scanDecisionLog(row rowScanner) (*models.DecisionLog, error) {
	l := &models.DecisionLog{}
	var scores, reasons string
	var choice, feedback sql.NullString
	err := row.Scan(
		&l.ID, &l.UserID, &l.TaskAID, &l.TaskBID, &l.RecommendedID, &scores, &reasons,
		&l.Confidence, &l.CreatedAt, &choice, &feedback, &l.FeedbackAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(scores), &l.Scores); err != nil {
		return nil, fmt.Errorf("failed to decode scores: %w", err)
	}
	if err := json.Unmarshal([]byte(reasons), &l.Reasons); err != nil {
		return nil, fmt.Errorf("failed to decode reasons: %w", err)
	}
	if choice.Valid {
		l.UserChoice = &choice.String
	}
	if feedback.Valid {
		l.Feedback = &feedback.String
	}
	return l, nil
}
