package api

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/sync/errgroup"

	"taskboard/pkg/activity"
	"taskboard/pkg/depgraph"
	"taskboard/pkg/task"
)

// loadGraph fetches every task and edge concurrently.
func (s *Server) loadGraph(ctx context.Context) ([]task.Task, []task.Dependency, error) {
	var tasks []task.Task
	var deps []task.Dependency
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.tasks.List(ctx, task.Filters{})
		return err
	})
	g.Go(func() error {
		var err error
		deps, err = s.tasks.ListDependencies(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	if deps == nil {
		deps = []task.Dependency{}
	}
	return tasks, deps, nil
}

func (s *Server) handleDependencyList(w http.ResponseWriter, r *http.Request) {
	tasks, deps, err := s.loadGraph(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, r, 200, map[string]any{"tasks": tasks, "dependencies": deps})
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	tasks, deps, err := s.loadGraph(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	a := depgraph.Analyze(tasks, deps)
	if a.Cyclic {
		s.requestLog(r).WithField("back_edges", a.BackEdges).Warn("dependency graph contains a cycle")
	}
	definition := a.Mermaid()

	if r.URL.Query().Get("format") == "mmd" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="task-dependency.mmd"`)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(definition))
		return
	}

	path := a.CriticalPath
	if path == nil {
		path = []int64{}
	}
	s.writeJSON(w, r, 200, map[string]any{
		"definition":   definition,
		"criticalPath": path,
		"cyclic":       a.Cyclic,
	})
}

func (s *Server) handleTaskDependencies(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, r, 400, "invalid task id")
		return
	}
	deps, err := s.tasks.DependenciesOf(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	dependsOn := make([]int64, 0, len(deps))
	for _, d := range deps {
		dependsOn = append(dependsOn, d.DependsOnTaskID)
	}
	s.writeJSON(w, r, 200, map[string]any{"taskId": id, "dependsOn": dependsOn})
}

func (s *Server) handleTaskDependenciesSet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, r, 400, "invalid task id")
		return
	}
	var req struct {
		DependsOn []int64 `json:"dependsOn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, 400, "invalid JSON: "+err.Error())
		return
	}
	ctx := r.Context()
	if _, err := s.tasks.Get(ctx, id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.tasks.SetDependencies(ctx, id, req.DependsOn); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.bus.Publish(ctx, activity.DependenciesChanged, id, map[string]any{"depends_on": req.DependsOn})
	s.writeJSON(w, r, 200, map[string]bool{"ok": true})
}
