package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/cadence/internal/db"
	"github.com/ldi/cadence/internal/decision"
	"github.com/ldi/cadence/internal/habits"
	"github.com/ldi/cadence/internal/scoring"
	"github.com/ldi/cadence/pkg/models"
)

var testNow = time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*server.MCPServer, *db.DB) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Init(context.Background()); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	database.SetClock(func() time.Time { return testNow })

	engine := decision.NewEngine(database, scoring.New(scoring.DefaultWeights()), time.UTC)
	engine.Now = func() time.Time { return testNow }
	hs := habits.NewService(database, time.UTC)
	hs.Now = func() time.Time { return testNow }

	return NewServer(database, engine, hs, "local"), database
}

func call(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler %s failed: %v", name, err)
	}
	return result
}

func text(result *mcp.CallToolResult) string {
	return result.Content[0].(mcp.TextContent).Text
}

func callOK(t *testing.T, s *server.MCPServer, name string, args map[string]any, dst any) {
	t.Helper()
	result := call(t, s, name, args)
	if result.IsError {
		t.Fatalf("Tool %s returned error: %s", name, text(result))
	}
	if dst != nil {
		if err := json.Unmarshal([]byte(text(result)), dst); err != nil {
			t.Fatalf("Failed to unmarshal %s response %q: %v", name, text(result), err)
		}
	}
}

func TestServerInitialization(t *testing.T) {
	s, _ := newTestServer(t)
	stdio := server.NewStdioServer(s)

	r, w := io.Pipe()
	stdout := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		stdio.Listen(ctx, r, stdout)
	}()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}

	rawReq := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  initReq.Params,
	}

	data, err := json.Marshal(rawReq)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(data)
	w.Write([]byte("\n"))

	// Give it a moment to process
	time.Sleep(200 * time.Millisecond)

	if stdout.Len() == 0 {
		t.Fatal("Expected response from server, got none")
	}

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, stdout.String())
	}
	if resp.ID != 1 {
		t.Errorf("Expected id 1, got %v", resp.ID)
	}
	if resp.Result.ServerInfo.Name != "Cadence" || resp.Result.ServerInfo.Version != Version {
		t.Errorf("Unexpected server info: %+v", resp.Result.ServerInfo)
	}
}

func TestAllToolsRegistered(t *testing.T) {
	s, _ := newTestServer(t)
	for _, name := range []string{
		"recommend_next", "save_user_feedback", "get_decision", "feedback_summary",
		"create_goal", "list_goals", "create_task", "list_tasks", "update_task_status",
		"create_habit", "list_habits", "check_habit", "uncheck_habit", "habit_stats", "habits_overview",
	} {
		if s.GetTool(name) == nil {
			t.Errorf("Tool %s not registered", name)
		}
	}
}

func TestDecisionTools(t *testing.T) {
	s, _ := newTestServer(t)

	var goal models.Goal
	callOK(t, s, "create_goal", map[string]any{"title": "Health"}, &goal)

	var urgent, later models.Task
	callOK(t, s, "create_task", map[string]any{
		"title":        "Book checkup",
		"priority":     "high",
		"goal_id":      goal.ID,
		"scheduled_at": "2026-03-12",
	}, &urgent)
	if !urgent.AllDay || urgent.ScheduledAt == nil {
		t.Errorf("Expected an all-day deadline, got %+v", urgent)
	}
	callOK(t, s, "create_task", map[string]any{"title": "Sort photos", "priority": "low"}, &later)

	t.Run("recommend_next", func(t *testing.T) {
		var d models.Decision
		callOK(t, s, "recommend_next", map[string]any{"task_ids": []any{later.ID, urgent.ID}}, &d)
		if d.RecommendedID != urgent.ID || d.LogID == "" {
			t.Fatalf("Unexpected decision: %+v", d)
		}

		var types []string
		for _, r := range d.Reasons {
			types = append(types, r.Type)
		}
		if len(types) == 0 || types[0] != "overdue" {
			t.Errorf("Expected overdue as the leading reason, got %v", types)
		}

		callOK(t, s, "save_user_feedback", map[string]any{
			"decision_log_id": d.LogID,
			"user_choice":     urgent.ID,
			"feedback":        "obviously",
		}, nil)

		var l models.DecisionLog
		callOK(t, s, "get_decision", map[string]any{"decision_log_id": d.LogID}, &l)
		if l.UserChoice == nil || *l.UserChoice != urgent.ID {
			t.Errorf("Expected feedback recorded, got %+v", l)
		}

		var summary models.FeedbackSummary
		callOK(t, s, "feedback_summary", map[string]any{}, &summary)
		if summary.Decisions != 1 || summary.Accepted != 1 || summary.AcceptanceRate != 1 {
			t.Errorf("Unexpected summary: %+v", summary)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if r := call(t, s, "recommend_next", map[string]any{"task_ids": []any{urgent.ID}}); !r.IsError {
			t.Error("Expected a single candidate to be rejected")
		}
		r := call(t, s, "recommend_next", map[string]any{"task_ids": []any{urgent.ID, later.ID}, "user_id": "someone-else"})
		if r.IsError || !strings.Contains(text(r), "No recommendation") {
			t.Errorf("Expected no recommendation for another user, got %s", text(r))
		}
		if r := call(t, s, "get_decision", map[string]any{"decision_log_id": "missing"}); !r.IsError {
			t.Error("Expected missing decision to be an error")
		}
		if r := call(t, s, "create_task", map[string]any{"title": "x", "scheduled_at": "someday"}); !r.IsError {
			t.Error("Expected unparseable schedule to be rejected")
		}
		if r := call(t, s, "list_tasks", map[string]any{"status": "done"}); !r.IsError {
			t.Error("Expected unknown status filter to be rejected")
		}
	})

	t.Run("tasks", func(t *testing.T) {
		var updated models.Task
		callOK(t, s, "update_task_status", map[string]any{"task_id": later.ID, "status": "in_progress"}, &updated)
		if updated.Status != models.TaskStatusInProgress {
			t.Errorf("Expected in_progress, got %s", updated.Status)
		}

		var resp struct {
			Tasks []*models.Task `json:"tasks"`
		}
		callOK(t, s, "list_tasks", map[string]any{"goal_id": goal.ID}, &resp)
		if len(resp.Tasks) != 1 || resp.Tasks[0].ID != urgent.ID {
			t.Errorf("Expected only the goal's task, got %+v", resp.Tasks)
		}

		var goals struct {
			Goals []*models.Goal `json:"goals"`
		}
		callOK(t, s, "list_goals", map[string]any{"active_only": true}, &goals)
		if len(goals.Goals) != 1 {
			t.Errorf("Expected 1 goal, got %d", len(goals.Goals))
		}
	})
}

func TestHabitTools(t *testing.T) {
	s, _ := newTestServer(t)

	var h models.Habit
	callOK(t, s, "create_habit", map[string]any{
		"title":           "Swim",
		"recurrence_type": "weekly",
		"days":            []any{1.0, 3.0, 5.0},
	}, &h)
	if !h.Rule.Days.Has(time.Friday) || h.Rule.Days.Has(time.Tuesday) {
		t.Errorf("Unexpected weekdays: %v", h.Rule.Days.Ints())
	}

	if r := call(t, s, "create_habit", map[string]any{"title": "x", "recurrence_type": "weekly", "days": []any{7.0}}); !r.IsError {
		t.Error("Expected weekday 7 to be rejected")
	}

	callOK(t, s, "check_habit", map[string]any{"habit_id": h.ID, "date": "2026-03-13"}, nil)

	var st habits.Stats
	callOK(t, s, "habit_stats", map[string]any{"habit_id": h.ID}, &st)
	if !st.DueToday || !st.CheckedToday || st.Streaks.Current != 1 {
		t.Errorf("Unexpected stats: %+v", st)
	}

	var ov habits.OverviewResult
	callOK(t, s, "habits_overview", map[string]any{}, &ov)
	if ov.Overview.ActiveHabits != 1 || ov.Overview.CheckedToday != 1 {
		t.Errorf("Unexpected overview: %+v", ov.Overview)
	}

	callOK(t, s, "uncheck_habit", map[string]any{"habit_id": h.ID, "date": "2026-03-13"}, nil)
	callOK(t, s, "habit_stats", map[string]any{"habit_id": h.ID}, &st)
	if st.CheckedToday {
		t.Errorf("Expected check removed, got %+v", st)
	}

	if r := call(t, s, "habit_stats", map[string]any{"habit_id": h.ID, "user_id": "intruder"}); !r.IsError {
		t.Error("Expected another user's habit to be hidden")
	}

	var list struct {
		Habits []*models.Habit `json:"habits"`
	}
	callOK(t, s, "list_habits", map[string]any{}, &list)
	if len(list.Habits) != 1 {
		t.Errorf("Expected 1 habit, got %d", len(list.Habits))
	}
}
