// Package mcp exposes cadence over the Model Context Protocol on stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/cadence/internal/db"
	"github.com/ldi/cadence/internal/decision"
	"github.com/ldi/cadence/internal/habits"
	"github.com/ldi/cadence/internal/recurrence"
	"github.com/ldi/cadence/pkg/models"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

type handlers struct {
	db     *db.DB
	engine *decision.Engine
	habits *habits.Service
	user   string
	now    func() time.Time
}

// NewServer creates a new MCP server. Tools act for defaultUser unless a
// user_id argument is given.
func NewServer(database *db.DB, engine *decision.Engine, hs *habits.Service, defaultUser string) *server.MCPServer {
	h := &handlers{db: database, engine: engine, habits: hs, user: defaultUser, now: time.Now}
	s := server.NewMCPServer("Cadence", Version)

	userArg := mcp.WithString("user_id", mcp.Description("Act for this user instead of the configured local user"))

	// Decisions
	s.AddTool(mcp.NewTool("recommend_next",
		mcp.WithDescription("Score two or more candidate tasks and recommend which to do next. The decision is logged for later feedback."),
		mcp.WithArray("task_ids", mcp.Description("Candidate task ids (at least two)"), mcp.Required(), mcp.Items(map[string]any{"type": "string"})),
		userArg,
	), h.recommendNext())

	s.AddTool(mcp.NewTool("save_user_feedback",
		mcp.WithDescription("Record which candidate the user actually chose for a logged decision. Later calls overwrite earlier ones."),
		mcp.WithString("decision_log_id", mcp.Description("Decision log id returned by recommend_next"), mcp.Required()),
		mcp.WithString("user_choice", mcp.Description("Id of the chosen task; must be one of the decision's candidates"), mcp.Required()),
		mcp.WithString("feedback", mcp.Description("Optional free-text feedback")),
		userArg,
	), h.saveUserFeedback())

	s.AddTool(mcp.NewTool("get_decision",
		mcp.WithDescription("Get a logged decision with its scores, reasons and feedback."),
		mcp.WithString("decision_log_id", mcp.Description("Decision log id"), mcp.Required()),
		userArg,
	), h.getDecision())

	s.AddTool(mcp.NewTool("feedback_summary",
		mcp.WithDescription("How often the user followed the recommendation."),
		userArg,
	), h.feedbackSummary())

	// Goals and tasks
	s.AddTool(mcp.NewTool("create_goal",
		mcp.WithDescription("Create a goal that tasks can be linked to."),
		mcp.WithString("title", mcp.Description("Goal title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Goal description")),
		userArg,
	), h.createGoal())

	s.AddTool(mcp.NewTool("list_goals",
		mcp.WithDescription("List goals."),
		mcp.WithBoolean("active_only", mcp.Description("Only list active goals")),
		userArg,
	), h.listGoals())

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Priority (high|mid|low, defaults to mid)")),
		mcp.WithString("goal_id", mcp.Description("Goal the task belongs to")),
		mcp.WithString("scheduled_at", mcp.Description("Deadline: YYYY-MM-DD for all day, YYYY-MM-DD HH:MM local, or RFC 3339")),
		userArg,
	), h.createTask())

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with optional filters."),
		mcp.WithString("status", mcp.Description("Filter by status")),
		mcp.WithString("goal_id", mcp.Description("Filter by goal")),
		mcp.WithBoolean("open_only", mcp.Description("Only todo and in_progress tasks")),
		userArg,
	), h.listTasks())

	s.AddTool(mcp.NewTool("update_task_status",
		mcp.WithDescription("Update task status."),
		mcp.WithString("task_id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("status", mcp.Description("New status (todo|in_progress|completed|archived_completed|archived_cancelled)"), mcp.Required()),
		userArg,
	), h.updateTaskStatus())

	// Habits
	s.AddTool(mcp.NewTool("create_habit",
		mcp.WithDescription("Create a recurring habit."),
		mcp.WithString("title", mcp.Description("Habit title"), mcp.Required()),
		mcp.WithString("recurrence_type", mcp.Description("daily|weekly|monthly"), mcp.Required()),
		mcp.WithArray("days", mcp.Description("Weekdays for weekly habits, 0 = Sunday .. 6 = Saturday"), mcp.Items(map[string]any{"type": "integer", "minimum": 0, "maximum": 6})),
		userArg,
	), h.createHabit())

	s.AddTool(mcp.NewTool("list_habits",
		mcp.WithDescription("List habits."),
		userArg,
	), h.listHabits())

	s.AddTool(mcp.NewTool("check_habit",
		mcp.WithDescription("Mark a habit as done on a day."),
		mcp.WithString("habit_id", mcp.Description("Habit id"), mcp.Required()),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (defaults to today)")),
		userArg,
	), h.checkHabit(true))

	s.AddTool(mcp.NewTool("uncheck_habit",
		mcp.WithDescription("Remove the check of a habit on a day."),
		mcp.WithString("habit_id", mcp.Description("Habit id"), mcp.Required()),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (defaults to today)")),
		userArg,
	), h.checkHabit(false))

	s.AddTool(mcp.NewTool("habit_stats",
		mcp.WithDescription("Current and longest streak plus all-time, weekly and monthly completion rates of a habit."),
		mcp.WithString("habit_id", mcp.Description("Habit id"), mcp.Required()),
		userArg,
	), h.habitStats())

	s.AddTool(mcp.NewTool("habits_overview",
		mcp.WithDescription("Aggregate statistics over all habits."),
		userArg,
	), h.habitsOverview())

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (h *handlers) userFor(request mcp.CallToolRequest) string {
	return mcp.ParseString(request, "user_id", h.user)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringArgs reads an array argument of strings.
func stringArgs(request mcp.CallToolRequest, key string) []string {
	args, _ := request.Params.Arguments.(map[string]any)
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// weekdayArgs reads an array of weekday indices 0..6.
func weekdayArgs(request mcp.CallToolRequest, key string) (models.WeekdaySet, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, nil
	}

	var nums []float64
	switch v := raw.(type) {
	case []float64:
		nums = v
	case []int:
		for _, n := range v {
			nums = append(nums, float64(n))
		}
	case []any:
		for _, item := range v {
			n, ok := item.(float64)
			if !ok {
				return 0, fmt.Errorf("%w: %s must contain numbers", models.ErrInvalidInput, key)
			}
			nums = append(nums, n)
		}
	default:
		return 0, fmt.Errorf("%w: %s must be an array", models.ErrInvalidInput, key)
	}

	var set models.WeekdaySet
	for _, n := range nums {
		if n < 0 || n > 6 || n != float64(int(n)) {
			return 0, fmt.Errorf("%w: weekday %v out of range 0..6", models.ErrInvalidInput, n)
		}
		set = set.With(time.Weekday(int(n)))
	}
	return set, nil
}

func (h *handlers) recommendNext() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, err := h.engine.RecommendNext(ctx, stringArgs(request, "task_ids"), h.userFor(request))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if d == nil {
			return mcp.NewToolResultText("No recommendation: fewer than two of the given tasks exist."), nil
		}
		return jsonResult(d)
	}
}

func (h *handlers) saveUserFeedback() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logID := mcp.ParseString(request, "decision_log_id", "")
		choice := mcp.ParseString(request, "user_choice", "")

		var feedback *string
		args, _ := request.Params.Arguments.(map[string]any)
		if f, ok := args["feedback"].(string); ok {
			feedback = &f
		}

		if err := h.engine.SaveUserFeedback(ctx, logID, h.userFor(request), choice, feedback); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Feedback recorded"), nil
	}
}

func (h *handlers) getDecision() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logID := mcp.ParseString(request, "decision_log_id", "")

		l, err := h.engine.GetDecisionLog(ctx, logID, h.userFor(request))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if l == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Decision log '%s' not found", logID)), nil
		}
		return jsonResult(l)
	}
}

func (h *handlers) feedbackSummary() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summary, err := h.engine.FeedbackSummary(ctx, h.userFor(request))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(summary)
	}
}

func (h *handlers) createGoal() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		g := &models.Goal{
			UserID:      h.userFor(request),
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
		}
		if err := h.db.CreateGoal(ctx, g); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(g)
	}
}

func (h *handlers) listGoals() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		activeOnly := mcp.ParseBoolean(request, "active_only", false)
		goals, err := h.db.ListGoals(ctx, h.userFor(request), activeOnly)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"goals": goals})
	}
}

func (h *handlers) createTask() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scheduled, allDay, err := models.ParseSchedule(mcp.ParseString(request, "scheduled_at", ""), h.engine.Location())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		t := &models.Task{
			UserID:      h.userFor(request),
			GoalID:      mcp.ParseString(request, "goal_id", ""),
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
			Priority:    models.Priority(mcp.ParseString(request, "priority", "")),
			ScheduledAt: scheduled,
			AllDay:      allDay,
		}
		if err := h.db.CreateTask(ctx, t); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func (h *handlers) listTasks() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f := db.TaskFilter{
			GoalID:   mcp.ParseString(request, "goal_id", ""),
			OpenOnly: mcp.ParseBoolean(request, "open_only", false),
		}
		if s := mcp.ParseString(request, "status", ""); s != "" {
			status := models.TaskStatus(s)
			if !status.Valid() {
				return mcp.NewToolResultError(fmt.Sprintf("Unknown status '%s'", s)), nil
			}
			f.Status = &status
		}

		tasks, err := h.db.ListTasks(ctx, h.userFor(request), f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"tasks": tasks})
	}
}

func (h *handlers) updateTaskStatus() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "task_id", "")
		status := models.TaskStatus(mcp.ParseString(request, "status", ""))

		t, err := h.db.UpdateTaskStatus(ctx, id, h.userFor(request), status)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func (h *handlers) createHabit() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		days, err := weekdayArgs(request, "days")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		hb := &models.Habit{
			UserID: h.userFor(request),
			Title:  mcp.ParseString(request, "title", ""),
			Rule: models.RecurrenceRule{
				Type: models.RecurrenceType(mcp.ParseString(request, "recurrence_type", "")),
				Days: days,
			},
		}
		if err := h.db.CreateHabit(ctx, hb); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(hb)
	}
}

func (h *handlers) listHabits() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		hs, err := h.db.ListHabits(ctx, h.userFor(request))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"habits": hs})
	}
}

func (h *handlers) checkHabit(done bool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		habitID := mcp.ParseString(request, "habit_id", "")
		date := mcp.ParseString(request, "date", recurrence.Key(h.now(), h.engine.Location()))
		userID := h.userFor(request)

		var err error
		if done {
			err = h.db.CheckHabit(ctx, habitID, userID, date)
		} else {
			err = h.db.UncheckHabit(ctx, habitID, userID, date)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if done {
			return mcp.NewToolResultText(fmt.Sprintf("Habit checked for %s", date)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Habit unchecked for %s", date)), nil
	}
}

func (h *handlers) habitStats() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := h.habits.HabitStats(ctx, mcp.ParseString(request, "habit_id", ""), h.userFor(request))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(st)
	}
}

func (h *handlers) habitsOverview() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := h.habits.Overview(ctx, h.userFor(request))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(res)
	}
}
