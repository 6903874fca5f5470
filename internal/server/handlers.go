package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ldi/cadence/internal/db"
	"github.com/ldi/cadence/pkg/models"
)

type recommendRequest struct {
	TaskIDs []string `json:"task_ids"`
}

type feedbackRequest struct {
	DecisionLogID string  `json:"decision_log_id"`
	UserChoice    string  `json:"user_choice"`
	Feedback      *string `json:"feedback,omitempty"`
}

type createGoalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type createTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
	GoalID      string          `json:"goal_id"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	AllDay      bool            `json:"all_day"`
}

type updateStatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

type createHabitRequest struct {
	Title          string                `json:"title"`
	RecurrenceType models.RecurrenceType `json:"recurrence_type"`
	Days           models.WeekdaySet     `json:"days"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]string{"status": "ok"}, nil)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	d, err := s.engine.RecommendNext(r.Context(), req.TaskIDs, userID(r))
	if err == nil && d == nil {
		s.respondStatus(w, http.StatusNoContent, nil, nil)
		return
	}
	s.respond(w, d, err)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	uid := userID(r)
	if err := s.engine.SaveUserFeedback(r.Context(), req.DecisionLogID, uid, req.UserChoice, req.Feedback); err != nil {
		s.respondError(w, err)
		return
	}
	l, err := s.engine.GetDecisionLog(r.Context(), req.DecisionLogID, uid)
	s.respond(w, l, err)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	l, err := s.engine.GetDecisionLog(r.Context(), id, userID(r))
	if err == nil && l == nil {
		err = fmt.Errorf("%w: decision log %s", models.ErrNotFound, id)
	}
	s.respond(w, l, err)
}

func (s *Server) handleFeedbackSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.FeedbackSummary(r.Context(), userID(r))
	s.respond(w, summary, err)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	goals, err := s.db.ListGoals(r.Context(), userID(r), activeOnly)
	if goals == nil {
		goals = []*models.Goal{}
	}
	s.respond(w, goals, err)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	g := &models.Goal{UserID: userID(r), Title: req.Title, Description: req.Description}
	err := s.db.CreateGoal(r.Context(), g)
	s.respondStatus(w, http.StatusCreated, g, err)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := db.TaskFilter{
		GoalID:   q.Get("goal_id"),
		OpenOnly: q.Get("open") == "true",
	}
	if v := q.Get("status"); v != "" {
		status := models.TaskStatus(v)
		if !status.Valid() {
			s.respondError(w, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, v))
			return
		}
		f.Status = &status
	}

	tasks, err := s.db.ListTasks(r.Context(), userID(r), f)
	if tasks == nil {
		tasks = []*models.Task{}
	}
	s.respond(w, tasks, err)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	t := &models.Task{
		UserID:      userID(r),
		GoalID:      strings.TrimSpace(req.GoalID),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		ScheduledAt: req.ScheduledAt,
		AllDay:      req.AllDay,
	}
	err := s.db.CreateTask(r.Context(), t)
	s.respondStatus(w, http.StatusCreated, t, err)
}

func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	t, err := s.db.UpdateTaskStatus(r.Context(), r.PathValue("id"), userID(r), req.Status)
	s.respond(w, t, err)
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	hs, err := s.db.ListHabits(r.Context(), userID(r))
	if hs == nil {
		hs = []*models.Habit{}
	}
	s.respond(w, hs, err)
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var req createHabitRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	h := &models.Habit{
		UserID: userID(r),
		Title:  req.Title,
		Rule:   models.RecurrenceRule{Type: req.RecurrenceType, Days: req.Days},
	}
	err := s.db.CreateHabit(r.Context(), h)
	s.respondStatus(w, http.StatusCreated, h, err)
}

func (s *Server) handleHabitStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.habits.HabitStats(r.Context(), r.PathValue("id"), userID(r))
	s.respond(w, st, err)
}

func (s *Server) handleHabitsOverview(w http.ResponseWriter, r *http.Request) {
	res, err := s.habits.Overview(r.Context(), userID(r))
	s.respond(w, res, err)
}

func (s *Server) handleCheckHabit(w http.ResponseWriter, r *http.Request) {
	err := s.db.CheckHabit(r.Context(), r.PathValue("id"), userID(r), r.PathValue("date"))
	s.respondStatus(w, http.StatusNoContent, nil, err)
}

func (s *Server) handleUncheckHabit(w http.ResponseWriter, r *http.Request) {
	err := s.db.UncheckHabit(r.Context(), r.PathValue("id"), userID(r), r.PathValue("date"))
	s.respondStatus(w, http.StatusNoContent, nil, err)
}
