package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"taskboard/pkg/activity"
	"taskboard/pkg/memo"
	"taskboard/pkg/task"
)

// Options configures a Server. Zero values pick sensible defaults.
type Options struct {
	Backend   string         // reported by /api/status
	Location  *time.Location // dashboard buckets and date filters; UTC when nil
	MemoLimit int            // memos returned by GET /api/quick-memos
	Logger    *logrus.Logger
	Now       func() time.Time
}

// Server is the HTTP API server.
type Server struct {
	tasks   task.Store
	memos   memo.Store
	bus     *activity.Bus
	opts    Options
	log     *logrus.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a new Server.
func New(tasks task.Store, memos memo.Store, bus *activity.Bus, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MemoLimit <= 0 {
		opts.MemoLimit = memo.MaxRecent
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		tasks: tasks,
		memos: memos,
		bus:   bus,
		opts:  opts,
		log:   opts.Logger,
		mux:   http.NewServeMux(),
	}
	s.routes()
	s.handler = s.withRequestLogging(s.mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PUT /api/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)

	// Dependencies
	s.mux.HandleFunc("GET /api/tasks/{id}/dependencies", s.handleTaskDependencies)
	s.mux.HandleFunc("PUT /api/tasks/{id}/dependencies", s.handleTaskDependenciesSet)
	s.mux.HandleFunc("GET /api/dependencies", s.handleDependencyList)
	s.mux.HandleFunc("GET /api/dependencies/diagram", s.handleDiagram)

	// Dashboard, memos, export
	s.mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	s.mux.HandleFunc("GET /api/quick-memos", s.handleMemoList)
	s.mux.HandleFunc("POST /api/quick-memos", s.handleMemoCreate)
	s.mux.HandleFunc("GET /api/export", s.handleExport)

	// Activity
	s.mux.HandleFunc("GET /api/events", s.handleEventList)
	s.mux.HandleFunc("GET /api/events/stream", s.handleEventStream)
	s.mux.HandleFunc("GET /api/events/ws", s.handleEventSocket)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.tasks.Count(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, r, 200, map[string]any{
		"tasks":       count,
		"backend":     s.opts.Backend,
		"subscribers": s.bus.Subscribers(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.requestLog(r).WithError(err).Warn("write json")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeStoreError maps store errors to status codes: not found is 404,
// validation failures 400, anything else 500.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *task.ValidationError
	switch {
	case errors.Is(err, task.ErrNotFound):
		s.writeError(w, r, 404, "Task not found")
	case errors.As(err, &verr),
		errors.Is(err, memo.ErrEmptyContent),
		errors.Is(err, memo.ErrEmptyTaskName):
		s.writeError(w, r, 400, err.Error())
	default:
		s.requestLog(r).WithError(err).Error("request failed")
		s.writeError(w, r, 500, err.Error())
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
