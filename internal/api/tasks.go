package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"taskboard/pkg/activity"
	"taskboard/pkg/task"
)

func (s *Server) filtersFromQuery(r *http.Request) (task.Filters, error) {
	q := r.URL.Query()
	f := task.Filters{
		Search:          q.Get("q"),
		AutomationLevel: q.Get("automationLevel"),
		Priority:        q.Get("priority"),
		Owner:           q.Get("owner"),
		SortField:       q.Get("sortField"),
		SortOrder:       q.Get("sortOrder"),
	}
	now := s.opts.Now().In(s.opts.Location)
	for key, dst := range map[string]**time.Time{"startDate": &f.From, "endDate": &f.To} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := task.ParseDateBound(v, now)
		if err != nil {
			return f, fmt.Errorf("%s: %w", key, err)
		}
		*dst = &t
	}
	return f, nil
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	f, err := s.filtersFromQuery(r)
	if err != nil {
		s.writeError(w, r, 400, err.Error())
		return
	}
	tasks, err := s.tasks.List(r.Context(), f)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	s.writeJSON(w, r, 200, map[string]any{"tasks": tasks})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, r, 400, "invalid task id")
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, r, 200, map[string]any{"task": t})
}

// createRequest is a task plus optional prerequisites.
type createRequest struct {
	task.Task
	DependsOn []int64 `json:"dependsOn"`
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, 400, "invalid JSON: "+err.Error())
		return
	}
	req.ID = 0
	created, err := s.tasks.Create(r.Context(), &req.Task)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if len(req.DependsOn) > 0 {
		if err := s.tasks.SetDependencies(r.Context(), created.ID, req.DependsOn); err != nil {
			// undo the insert so a failed create leaves nothing behind
			if derr := s.tasks.Delete(r.Context(), created.ID); derr != nil {
				s.requestLog(r).WithError(derr).WithField("task_id", created.ID).Error("remove partially created task")
			}
			s.writeStoreError(w, r, err)
			return
		}
	}
	s.bus.Publish(r.Context(), activity.TaskCreated, created.ID, map[string]any{
		"task_name": created.TaskName,
	})
	s.writeJSON(w, r, 201, map[string]any{"id": created.ID})
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, r, 400, "invalid task id")
		return
	}
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		s.writeError(w, r, 400, "invalid JSON: "+err.Error())
		return
	}
	rawDeps, hasDeps := updates["dependsOn"]
	delete(updates, "dependsOn")
	var dependsOn []int64
	if hasDeps && rawDeps != nil {
		var err error
		if dependsOn, err = toIDs(rawDeps); err != nil {
			s.writeError(w, r, 400, "dependsOn: "+err.Error())
			return
		}
	}

	// id, created_at and updated_at are dropped here; a body holding only
	// those is a no-op
	updates, err := task.NormalizeUpdates(updates)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	ctx := r.Context()
	if len(updates) > 0 {
		_, err = s.tasks.Update(ctx, id, updates)
	} else {
		_, err = s.tasks.Get(ctx, id)
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if len(updates) > 0 {
		s.bus.Publish(ctx, activity.TaskUpdated, id, map[string]any{"fields": sortedFields(updates)})
	}
	if hasDeps && rawDeps != nil {
		if err := s.tasks.SetDependencies(ctx, id, dependsOn); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.bus.Publish(ctx, activity.DependenciesChanged, id, map[string]any{"depends_on": dependsOn})
	}
	s.writeJSON(w, r, 200, map[string]bool{"ok": true})
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, r, 400, "invalid task id")
		return
	}
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.bus.Publish(r.Context(), activity.TaskDeleted, id, nil)
	s.writeJSON(w, r, 200, map[string]bool{"ok": true})
}

// toIDs converts a decoded JSON array of numbers to task ids.
func toIDs(v any) ([]int64, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("must be an array of task ids")
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		f, ok := item.(float64)
		if !ok || f != float64(int64(f)) || f <= 0 {
			return nil, fmt.Errorf("invalid task id %v", item)
		}
		ids = append(ids, int64(f))
	}
	return ids, nil
}

func sortedFields(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
