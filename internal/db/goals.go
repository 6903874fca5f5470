package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ldi/cadence/pkg/models"
)

// CreateGoal inserts a new, active goal. If g.ID is empty a new UUID is generated.
func (db *DB) CreateGoal(ctx context.Context, g *models.Goal) error {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" || g.UserID == "" {
		return fmt.Errorf("%w: goal title and user are required", models.ErrInvalidInput)
	}
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	g.IsActive = true
	now := db.timestamp()
	g.CreatedAt, g.UpdatedAt = now, now

	query := `
		INSERT INTO goals (id, user_id, title, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		g.ID, g.UserID, g.Title, g.Description, boolInt(g.IsActive), g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// GetGoal retrieves a goal owned by userID. Returns nil if there is none.
func (db *DB) GetGoal(ctx context.Context, id, userID string) (*models.Goal, error) {
	query := `
		SELECT id, user_id, title, description, is_active, created_at, updated_at
		FROM goals
		WHERE id = ? AND user_id = ?
	`
	g := &models.Goal{}
	var active int
	err := db.QueryRowContext(ctx, query, id, userID).Scan(
		&g.ID, &g.UserID, &g.Title, &g.Description, &active, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	g.IsActive = active == 1
	return g, nil
}

// ListGoals returns the user's goals, oldest first.
func (db *DB) ListGoals(ctx context.Context, userID string, activeOnly bool) ([]*models.Goal, error) {
	query := `
		SELECT id, user_id, title, description, is_active, created_at, updated_at
		FROM goals
		WHERE user_id = ?
	`
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*models.Goal
	for rows.Next() {
		g := &models.Goal{}
		var active int
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &active, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		g.IsActive = active == 1
		goals = append(goals, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return goals, nil
}

// SetGoalActive archives or reactivates a goal.
func (db *DB) SetGoalActive(ctx context.Context, id, userID string, active bool) error {
	query := `
		UPDATE goals
		SET is_active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`
	res, err := db.ExecContext(ctx, query, boolInt(active), db.timestamp(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: goal %s", models.ErrNotFound, id)
	}

	db.triggerChange(ctx)
	return nil
}
