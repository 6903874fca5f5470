package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ldi/cadence/pkg/models"
)

const taskColumns = `id, user_id, goal_id, title, description, priority, status,
	scheduled_at, all_day, created_at, updated_at, completed_at`

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Status   *models.TaskStatus
	GoalID   string
	OpenOnly bool
}

// CreateTask inserts a new task into the database.
// If t.ID is empty, a new UUID is generated.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" || t.UserID == "" {
		return fmt.Errorf("%w: task title and user are required", models.ErrInvalidInput)
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMid
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", models.ErrInvalidInput, t.Priority)
	}
	if t.Status == "" {
		t.Status = models.TaskStatusTodo
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, t.Status)
	}
	if t.GoalID != "" {
		g, err := db.GetGoal(ctx, t.GoalID, t.UserID)
		if err != nil {
			return err
		}
		if g == nil {
			return fmt.Errorf("%w: goal %s does not exist", models.ErrInvalidInput, t.GoalID)
		}
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := db.timestamp()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.ScheduledAt != nil {
		at := t.ScheduledAt.UTC()
		t.ScheduledAt = &at
	}
	if completedStatus(t.Status) {
		t.CompletedAt = &now
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		t.ID, t.UserID, nullString(t.GoalID), t.Title, t.Description, t.Priority, t.Status,
		t.ScheduledAt, boolInt(t.AllDay), t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// GetTask retrieves a task owned by userID. Returns nil if there is none.
func (db *DB) GetTask(ctx context.Context, id, userID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND user_id = ?`
	t, err := scanTask(db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// GetTasksByIDs returns the distinct tasks among ids that belong to userID.
// Unknown ids and other users' tasks are silently left out.
func (db *DB) GetTasksByIDs(ctx context.Context, userID string, ids []string) ([]*models.Task, error) {
	seen := make(map[string]bool, len(ids))
	args := []any{userID}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		args = append(args, id)
	}
	if len(args) == 1 {
		return nil, nil
	}

	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE user_id = ? AND id IN (` + placeholders(len(args)-1) + `)
		ORDER BY created_at ASC, id ASC`
	return db.queryTasks(ctx, query, args...)
}

// ListTasks returns the user's tasks ordered by schedule, unscheduled last.
func (db *DB) ListTasks(ctx context.Context, userID string, f TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}

	if f.Status != nil {
		query += " AND status = ?"
		args = append(args, *f.Status)
	}
	if f.OpenOnly {
		query += " AND status IN ('todo', 'in_progress')"
	}
	if f.GoalID != "" {
		query += " AND goal_id = ?"
		args = append(args, f.GoalID)
	}

	query += " ORDER BY CASE WHEN scheduled_at IS NULL THEN 1 ELSE 0 END, scheduled_at ASC, created_at ASC, id ASC"

	return db.queryTasks(ctx, query, args...)
}

// queryTasks is a helper to execute a query that returns a list of tasks.
func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tasks, nil
}

// UpdateTaskStatus moves a task to status and maintains completed_at.
func (db *DB) UpdateTaskStatus(ctx context.Context, id, userID string, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, status)
	}

	current, err := db.GetTask(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: task %s", models.ErrNotFound, id)
	}
	if err := validateStatusTransition(current.Status, status); err != nil {
		return nil, err
	}

	now := db.timestamp()
	completedAt := current.CompletedAt
	switch {
	case completedStatus(status) && completedAt == nil:
		completedAt = &now
	case !completedStatus(status):
		completedAt = nil
	}

	query := `
		UPDATE tasks
		SET status = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING ` + taskColumns
	t, err := scanTask(db.QueryRowContext(ctx, query, status, now, completedAt, id, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: task %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	db.triggerChange(ctx)
	return t, nil
}

// DeleteTask deletes a task by its ID.
func (db *DB) DeleteTask(ctx context.Context, id, userID string) error {
	query := `DELETE FROM tasks WHERE id = ? AND user_id = ?`
	res, err := db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: task %s", models.ErrNotFound, id)
	}

	db.triggerChange(ctx)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var goalID sql.NullString
	var allDay int
	err := row.Scan(
		&t.ID, &t.UserID, &goalID, &t.Title, &t.Description, &t.Priority, &t.Status,
		&t.ScheduledAt, &allDay, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	t.GoalID = goalID.String
	t.AllDay = allDay == 1
	return t, nil
}

func completedStatus(s models.TaskStatus) bool {
	return s == models.TaskStatusCompleted || s == models.TaskStatusArchivedCompleted
}

// validateStatusTransition keeps archived tasks archived. Everything else may
// move freely between the open and completed states.
func validateStatusTransition(from, to models.TaskStatus) error {
	if from == to {
		return nil
	}

	switch from {
	case models.TaskStatusArchivedCompleted, models.TaskStatusArchivedCancelled:
		return fmt.Errorf("%w: task is archived, cannot move from %s to %s", models.ErrInvalidInput, from, to)
	case models.TaskStatusTodo, models.TaskStatusInProgress:
		if to == models.TaskStatusArchivedCompleted {
			return fmt.Errorf("%w: invalid transition from %s to %s", models.ErrInvalidInput, from, to)
		}
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
