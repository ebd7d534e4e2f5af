package api

import (
	"errors"
	"fmt"
	"net/http"

	"taskboard/pkg/dashboard"
	"taskboard/pkg/export"
	"taskboard/pkg/task"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context(), task.Filters{})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, r, 200, dashboard.SummarizeIn(tasks, s.opts.Location))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.CSV
	}
	if !export.Supported(format) {
		s.writeError(w, r, 400, fmt.Sprintf("unsupported export format %q", format))
		return
	}
	tasks, err := s.tasks.List(r.Context(), task.Filters{})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(format)))
	if err := export.Write(w, format, tasks); err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			s.writeError(w, r, 400, err.Error())
			return
		}
		s.requestLog(r).WithError(err).Error("export failed")
	}
}
