package api

import (
	"encoding/json"
	"net/http"

	"taskboard/pkg/activity"
	"taskboard/pkg/memo"
)

func (s *Server) recentMemos(r *http.Request) ([]memo.Memo, error) {
	memos, err := s.memos.Recent(r.Context(), s.opts.MemoLimit)
	if memos == nil {
		memos = []memo.Memo{}
	}
	return memos, err
}

func (s *Server) handleMemoList(w http.ResponseWriter, r *http.Request) {
	memos, err := s.recentMemos(r)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, r, 200, map[string]any{"memos": memos})
}

func (s *Server) handleMemoCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID      *int64  `json:"taskId"`
		TaskName    *string `json:"taskName"`
		MemoContent string  `json:"memoContent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, 400, "invalid JSON: "+err.Error())
		return
	}
	m, err := s.memos.Create(r.Context(), &memo.Memo{
		TaskID:      req.TaskID,
		TaskName:    req.TaskName,
		MemoContent: req.MemoContent,
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var taskID int64
	if m.TaskID != nil {
		taskID = *m.TaskID
	}
	s.bus.Publish(r.Context(), activity.MemoCreated, taskID, map[string]any{"memo_id": m.ID})

	memos, err := s.recentMemos(r)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, r, 201, map[string]any{"memoId": m.ID, "memos": memos})
}
