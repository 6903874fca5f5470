package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ldi/cadence/pkg/models"
)

// EnableAutoExport sets up a hook that rewrites the decision log export at
// path after every successful write.
func (db *DB) EnableAutoExport(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// Best effort: a failed export must not fail the write that triggered it.
		_ = db.ExportDecisionLogs(ctx, path)
	})
}

// ExportDecisionLogs writes every decision log, one JSON object per line, to
// path atomically using a temporary file.
func (db *DB) ExportDecisionLogs(ctx context.Context, path string) error {
	logs, err := db.ListDecisionLogs(ctx, "", 0)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "decisions-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	enc := json.NewEncoder(w)
	for _, l := range logs {
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("failed to write decision log %s: %w", l.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportDecisionLogs reads a JSONL export and inserts the logs that are not
// present yet, all in one transaction. It returns the number of logs added.
func (db *DB) ImportDecisionLogs(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	t, err := db.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer t.Rollback()

	added := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l models.DecisionLog
		if err := json.Unmarshal(raw, &l); err != nil {
			return 0, fmt.Errorf("failed to decode line %d: %w", line, err)
		}
		if l.ID == "" || l.UserID == "" || !l.HasCandidate(l.RecommendedID) {
			return 0, fmt.Errorf("%w: line %d is not a valid decision log", models.ErrInvalidInput, line)
		}

		ok, err := importDecisionLog(ctx, t, &l)
		if err != nil {
			return 0, fmt.Errorf("failed to import line %d: %w", line, err)
		}
		if ok {
			added++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read export file: %w", err)
	}

	if err := t.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if added > 0 {
		db.triggerChange(ctx)
	}
	return added, nil
}

func importDecisionLog(ctx context.Context, exec executor, l *models.DecisionLog) (bool, error) {
	scores, err := json.Marshal(l.Scores)
	if err != nil {
		return false, err
	}
	reasons, err := json.Marshal(l.Reasons)
	if err != nil {
		return false, err
	}

	var feedbackAt any
	if l.FeedbackAt != nil {
		feedbackAt = l.FeedbackAt.UTC()
	}

	res, err := exec.ExecContext(ctx, `
		INSERT INTO decision_logs (`+decisionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		l.ID, l.UserID, l.TaskAID, l.TaskBID, l.RecommendedID, string(scores), string(reasons),
		l.Confidence, l.CreatedAt.UTC(), l.UserChoice, l.Feedback, feedbackAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}

	for i, id := range l.CandidateIDs {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO decision_candidates (decision_log_id, task_id, position) VALUES (?, ?, ?)
			 ON CONFLICT (decision_log_id, task_id) DO NOTHING`,
			l.ID, id, i,
		)
		if err != nil {
			return false, err
		}
	}
	return true, nil
}
