package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ldi/cadence/pkg/models"
)

const habitColumns = `id, user_id, title, recurrence_type, recurrence_days, is_active, created_at, updated_at`

// CreateHabit inserts a new, active habit. The rule's anchor is the creation time.
func (db *DB) CreateHabit(ctx context.Context, h *models.Habit) error {
	h.Title = strings.TrimSpace(h.Title)
	if h.Title == "" || h.UserID == "" {
		return fmt.Errorf("%w: habit title and user are required", models.ErrInvalidInput)
	}
	if !h.Rule.Type.Valid() {
		return fmt.Errorf("%w: unknown recurrence type %q", models.ErrInvalidInput, h.Rule.Type)
	}
	if h.Rule.Type == models.RecurrenceWeekly && h.Rule.Days.Empty() {
		return fmt.Errorf("%w: weekly habits need at least one weekday", models.ErrInvalidInput)
	}

	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	now := db.timestamp()
	h.CreatedAt, h.UpdatedAt = now, now
	h.Rule.Anchor = now
	h.Rule.Active = true

	days, err := encodeDays(h.Rule.Days)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO habits (` + habitColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query,
		h.ID, h.UserID, h.Title, h.Rule.Type, days, boolInt(h.Rule.Active), h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create habit: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// GetHabit retrieves a habit owned by userID. Returns nil if there is none.
func (db *DB) GetHabit(ctx context.Context, id, userID string) (*models.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = ? AND user_id = ?`
	h, err := scanHabit(db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}
	return h, nil
}

// ListHabits returns the user's habits, oldest first.
func (db *DB) ListHabits(ctx context.Context, userID string) ([]*models.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var habits []*models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return habits, nil
}

// SetHabitActive pauses or resumes a habit.
func (db *DB) SetHabitActive(ctx context.Context, id, userID string, active bool) error {
	query := `UPDATE habits SET is_active = ?, updated_at = ? WHERE id = ? AND user_id = ?`
	res, err := db.ExecContext(ctx, query, boolInt(active), db.timestamp(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: habit %s", models.ErrNotFound, id)
	}

	db.triggerChange(ctx)
	return nil
}

// CheckHabit marks date (YYYY-MM-DD) as done. Checking a day twice is a no-op.
func (db *DB) CheckHabit(ctx context.Context, habitID, userID, date string) error {
	if err := db.ownHabit(ctx, habitID, userID); err != nil {
		return err
	}
	if err := validDate(date); err != nil {
		return err
	}

	query := `
		INSERT INTO habit_checks (habit_id, check_date, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (habit_id, check_date) DO NOTHING
	`
	if _, err := db.ExecContext(ctx, query, habitID, date, db.timestamp()); err != nil {
		return fmt.Errorf("failed to check habit: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// UncheckHabit removes the check for date, if any.
func (db *DB) UncheckHabit(ctx context.Context, habitID, userID, date string) error {
	if err := db.ownHabit(ctx, habitID, userID); err != nil {
		return err
	}
	if err := validDate(date); err != nil {
		return err
	}

	query := `DELETE FROM habit_checks WHERE habit_id = ? AND check_date = ?`
	if _, err := db.ExecContext(ctx, query, habitID, date); err != nil {
		return fmt.Errorf("failed to uncheck habit: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// ListChecks returns the check days of a habit in ascending order, as midnight in loc.
func (db *DB) ListChecks(ctx context.Context, habitID string, loc *time.Location) ([]time.Time, error) {
	all, err := db.checksFor(ctx, loc, `WHERE habit_id = ?`, habitID)
	if err != nil {
		return nil, err
	}
	return all[habitID], nil
}

// ListUserChecks returns the check days of every habit of userID keyed by habit id.
func (db *DB) ListUserChecks(ctx context.Context, userID string, loc *time.Location) (map[string][]time.Time, error) {
	return db.checksFor(ctx, loc, `WHERE habit_id IN (SELECT id FROM habits WHERE user_id = ?)`, userID)
}

func (db *DB) checksFor(ctx context.Context, loc *time.Location, where string, args ...any) (map[string][]time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	query := `SELECT habit_id, check_date FROM habit_checks ` + where + ` ORDER BY habit_id, check_date`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]time.Time)
	for rows.Next() {
		var habitID, date string
		if err := rows.Scan(&habitID, &date); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		d, err := time.ParseInLocation(models.CheckDateLayout, date, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid check date %q for habit %s: %w", date, habitID, err)
		}
		out[habitID] = append(out[habitID], d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (db *DB) ownHabit(ctx context.Context, habitID, userID string) error {
	h, err := db.GetHabit(ctx, habitID, userID)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: habit %s", models.ErrNotFound, habitID)
	}
	return nil
}

func scanHabit(row rowScanner) (*models.Habit, error) {
	h := &models.Habit{}
	var days string
	var active int
	err := row.Scan(&h.ID, &h.UserID, &h.Title, &h.Rule.Type, &days, &active, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.Rule.Days = decodeDays(days)
	h.Rule.Active = active == 1
	h.Rule.Anchor = h.CreatedAt
	return h, nil
}

func encodeDays(s models.WeekdaySet) (string, error) {
	b, err := json.Marshal(s.Ints())
	if err != nil {
		return "", fmt.Errorf("failed to encode weekdays: %w", err)
	}
	return string(b), nil
}

// decodeDays parses stored weekday indices. Anything unparseable decodes to
// the empty set and out-of-range indices are dropped.
func decodeDays(s string) models.WeekdaySet {
	var days []int
	if err := json.Unmarshal([]byte(s), &days); err != nil {
		return 0
	}
	var set models.WeekdaySet
	for _, d := range days {
		set = set.With(time.Weekday(d))
	}
	return set
}

func validDate(date string) error {
	if _, err := time.Parse(models.CheckDateLayout, date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", models.ErrInvalidInput, date)
	}
	return nil
}
