package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ldi/cadence/pkg/models"
)

func TestGoalCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := &models.Goal{UserID: "u1", Title: "  Run a marathon ", Description: "Spring"}
	if err := db.CreateGoal(ctx, g); err != nil {
		t.Fatalf("Failed to create goal: %v", err)
	}
	if len(g.ID) != 36 || !strings.Contains(g.ID, "-") {
		t.Errorf("Expected a UUID, got %s", g.ID)
	}
	if g.Title != "Run a marathon" {
		t.Errorf("Expected trimmed title, got %q", g.Title)
	}

	fetched, err := db.GetGoal(ctx, g.ID, "u1")
	if err != nil {
		t.Fatalf("Failed to get goal: %v", err)
	}
	if fetched == nil || !fetched.IsActive || fetched.Description != "Spring" {
		t.Fatalf("Unexpected goal: %+v", fetched)
	}
	if !fetched.CreatedAt.Equal(testNow) {
		t.Errorf("Expected created_at %v, got %v", testNow, fetched.CreatedAt)
	}

	other, err := db.GetGoal(ctx, g.ID, "u2")
	if err != nil {
		t.Fatalf("Failed to get goal: %v", err)
	}
	if other != nil {
		t.Errorf("Expected another user's goal to be invisible")
	}

	if err := db.SetGoalActive(ctx, g.ID, "u1", false); err != nil {
		t.Fatalf("Failed to archive goal: %v", err)
	}
	active, err := db.ListGoals(ctx, "u1", true)
	if err != nil {
		t.Fatalf("Failed to list goals: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected no active goals, got %d", len(active))
	}
	all, err := db.ListGoals(ctx, "u1", false)
	if err != nil {
		t.Fatalf("Failed to list goals: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 goal, got %d", len(all))
	}

	err = db.SetGoalActive(ctx, "missing", "u1", true)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	err = db.CreateGoal(ctx, &models.Goal{UserID: "u1", Title: " "})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty title, got %v", err)
	}
}

func TestTaskCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := &models.Goal{UserID: "u1", Title: "Goal"}
	if err := db.CreateGoal(ctx, g); err != nil {
		t.Fatalf("Failed to create goal: %v", err)
	}

	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}
	scheduled := time.Date(2026, 3, 20, 9, 0, 0, 0, loc)

	task := &models.Task{
		UserID:      "u1",
		GoalID:      g.ID,
		Title:       "Write report",
		Description: "Quarterly",
		Priority:    models.PriorityHigh,
		ScheduledAt: &scheduled,
		AllDay:      true,
	}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	if task.Status != models.TaskStatusTodo {
		t.Errorf("Expected default status todo, got %s", task.Status)
	}

	fetched, err := db.GetTask(ctx, task.ID, "u1")
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if fetched == nil {
		t.Fatalf("Task not found")
	}
	if fetched.GoalID != g.ID || !fetched.HasGoal() {
		t.Errorf("Expected goal %s, got %q", g.ID, fetched.GoalID)
	}
	if fetched.Priority != models.PriorityHigh || !fetched.AllDay {
		t.Errorf("Unexpected task: %+v", fetched)
	}
	if fetched.ScheduledAt == nil || !fetched.ScheduledAt.Equal(scheduled) {
		t.Errorf("Expected scheduled_at %v, got %v", scheduled, fetched.ScheduledAt)
	}
	if fetched.CompletedAt != nil {
		t.Errorf("Expected no completed_at")
	}

	standalone := &models.Task{UserID: "u1", Title: "Standalone", Priority: models.PriorityLow}
	if err := db.CreateTask(ctx, standalone); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	fetched, err = db.GetTask(ctx, standalone.ID, "u1")
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if fetched.HasGoal() || fetched.ScheduledAt != nil {
		t.Errorf("Expected standalone unscheduled task, got %+v", fetched)
	}

	if err := db.DeleteTask(ctx, standalone.ID, "u2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting another user's task, got %v", err)
	}
	if err := db.DeleteTask(ctx, standalone.ID, "u1"); err != nil {
		t.Fatalf("Failed to delete task: %v", err)
	}
	fetched, err = db.GetTask(ctx, standalone.ID, "u1")
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if fetched != nil {
		t.Errorf("Expected task to be deleted")
	}
}

func TestCreateTaskValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		task *models.Task
	}{
		{"empty title", &models.Task{UserID: "u1", Title: ""}},
		{"no user", &models.Task{Title: "x"}},
		{"bad priority", &models.Task{UserID: "u1", Title: "x", Priority: "urgent"}},
		{"bad status", &models.Task{UserID: "u1", Title: "x", Status: "pending"}},
		{"unknown goal", &models.Task{UserID: "u1", Title: "x", GoalID: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.CreateTask(ctx, tt.task)
			if !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestGetTasksByIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mine1 := &models.Task{UserID: "u1", Title: "one"}
	mine2 := &models.Task{UserID: "u1", Title: "two"}
	theirs := &models.Task{UserID: "u2", Title: "three"}
	for _, task := range []*models.Task{mine1, mine2, theirs} {
		if err := db.CreateTask(ctx, task); err != nil {
			t.Fatalf("Failed to create task: %v", err)
		}
	}

	tasks, err := db.GetTasksByIDs(ctx, "u1", []string{mine1.ID, mine1.ID, theirs.ID, "missing", mine2.ID})
	if err != nil {
		t.Fatalf("Failed to get tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.UserID != "u1" {
			t.Errorf("Got another user's task: %+v", task)
		}
	}

	tasks, err = db.GetTasksByIDs(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("Failed to get tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("Expected no tasks, got %d", len(tasks))
	}
}

func TestListTasks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	later := testNow.AddDate(0, 0, 5)
	sooner := testNow.AddDate(0, 0, 1)
	tasks := []*models.Task{
		{UserID: "u1", Title: "unscheduled"},
		{UserID: "u1", Title: "later", ScheduledAt: &later},
		{UserID: "u1", Title: "sooner", ScheduledAt: &sooner},
		{UserID: "u1", Title: "done", Status: models.TaskStatusCompleted},
	}
	for _, task := range tasks {
		if err := db.CreateTask(ctx, task); err != nil {
			t.Fatalf("Failed to create task: %v", err)
		}
	}

	open, err := db.ListTasks(ctx, "u1", TaskFilter{OpenOnly: true})
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	var titles []string
	for _, task := range open {
		titles = append(titles, task.Title)
	}
	if got := strings.Join(titles, ","); got != "sooner,later,unscheduled" {
		t.Errorf("Unexpected order: %s", got)
	}

	completed := models.TaskStatusCompleted
	done, err := db.ListTasks(ctx, "u1", TaskFilter{Status: &completed})
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(done) != 1 || done[0].CompletedAt == nil {
		t.Errorf("Expected one completed task with completed_at, got %+v", done)
	}

	none, err := db.ListTasks(ctx, "u2", TaskFilter{})
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no tasks for u2, got %d", len(none))
	}
}

func TestUpdateTaskStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := &models.Task{UserID: "u1", Title: "Task"}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	updated, err := db.UpdateTaskStatus(ctx, task.ID, "u1", models.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}
	if updated.Status != models.TaskStatusCompleted || updated.CompletedAt == nil {
		t.Errorf("Expected completed task with completed_at, got %+v", updated)
	}

	updated, err = db.UpdateTaskStatus(ctx, task.ID, "u1", models.TaskStatusTodo)
	if err != nil {
		t.Fatalf("Failed to reopen task: %v", err)
	}
	if updated.CompletedAt != nil {
		t.Errorf("Expected completed_at cleared on reopen")
	}

	if _, err := db.UpdateTaskStatus(ctx, task.ID, "u1", models.TaskStatusArchivedCancelled); err != nil {
		t.Fatalf("Failed to cancel task: %v", err)
	}
	_, err = db.UpdateTaskStatus(ctx, task.ID, "u1", models.TaskStatusTodo)
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected archived task to stay archived, got %v", err)
	}

	_, err = db.UpdateTaskStatus(ctx, task.ID, "u2", models.TaskStatusTodo)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another user, got %v", err)
	}

	_, err = db.UpdateTaskStatus(ctx, task.ID, "u1", "blocked")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for unknown status, got %v", err)
	}
}

func TestValidateStatusTransition(t *testing.T) {
	tests := []struct {
		from, to models.TaskStatus
		ok       bool
	}{
		{models.TaskStatusTodo, models.TaskStatusInProgress, true},
		{models.TaskStatusInProgress, models.TaskStatusCompleted, true},
		{models.TaskStatusCompleted, models.TaskStatusArchivedCompleted, true},
		{models.TaskStatusTodo, models.TaskStatusArchivedCancelled, true},
		{models.TaskStatusTodo, models.TaskStatusArchivedCompleted, false},
		{models.TaskStatusArchivedCompleted, models.TaskStatusTodo, false},
		{models.TaskStatusArchivedCancelled, models.TaskStatusArchivedCancelled, true},
	}

	for _, tt := range tests {
		err := validateStatusTransition(tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("%s -> %s: expected ok=%v, got %v", tt.from, tt.to, tt.ok, err)
		}
	}
}
