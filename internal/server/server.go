// Package server exposes the decision engine, the habit statistics and the
// task store as a JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/rs/cors"

	"github.com/ldi/cadence/internal/auth"
	"github.com/ldi/cadence/internal/db"
	"github.com/ldi/cadence/internal/decision"
	"github.com/ldi/cadence/internal/habits"
	"github.com/ldi/cadence/pkg/models"
)

type Server struct {
	db      *db.DB
	engine  *decision.Engine
	habits  *habits.Service
	auth    auth.Middleware
	origins []string
	server  *http.Server
}

func NewServer(database *db.DB, engine *decision.Engine, hs *habits.Service, secret []byte, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		db:      database,
		engine:  engine,
		habits:  hs,
		auth:    auth.New(secret),
		origins: origins,
	}
}

// Handler returns the full middleware chain: request logging, CORS, then the
// routes. Everything under /api requires a bearer token.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Decision engine
	mux.HandleFunc("POST /api/ai/recommend", s.auth.Wrap(s.handleRecommend))
	mux.HandleFunc("POST /api/ai/feedback", s.auth.Wrap(s.handleFeedback))
	mux.HandleFunc("GET /api/ai/feedback/summary", s.auth.Wrap(s.handleFeedbackSummary))
	mux.HandleFunc("GET /api/ai/decisions/{id}", s.auth.Wrap(s.handleGetDecision))

	// Goals and tasks
	mux.HandleFunc("GET /api/goals", s.auth.Wrap(s.handleListGoals))
	mux.HandleFunc("POST /api/goals", s.auth.Wrap(s.handleCreateGoal))
	mux.HandleFunc("GET /api/tasks", s.auth.Wrap(s.handleListTasks))
	mux.HandleFunc("POST /api/tasks", s.auth.Wrap(s.handleCreateTask))
	mux.HandleFunc("PATCH /api/tasks/{id}/status", s.auth.Wrap(s.handleUpdateTaskStatus))

	// Habits
	mux.HandleFunc("GET /api/habits", s.auth.Wrap(s.handleListHabits))
	mux.HandleFunc("POST /api/habits", s.auth.Wrap(s.handleCreateHabit))
	mux.HandleFunc("GET /api/habits/overview", s.auth.Wrap(s.handleHabitsOverview))
	mux.HandleFunc("GET /api/habits/{id}/stats", s.auth.Wrap(s.handleHabitStats))
	mux.HandleFunc("POST /api/habits/{id}/checks/{date}", s.auth.Wrap(s.handleCheckHabit))
	mux.HandleFunc("DELETE /api/habits/{id}/checks/{date}", s.auth.Wrap(s.handleUncheckHabit))

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(s.origins, "*"),
	})

	return logRequests(c.Handler(mux))
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) respond(w http.ResponseWriter, data any, err error) {
	s.respondStatus(w, http.StatusOK, data, err)
}

func (s *Server) respondStatus(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		s.respondError(w, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	default:
		log.Printf("internal error: %v", err)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// decode reads a JSON body into dst. Malformed bodies are invalid input.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// userID is set by the auth middleware on every /api route.
func userID(r *http.Request) string {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
