package viewer

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/getmockd/apidiag/pkg/httputil"
	"github.com/getmockd/apidiag/pkg/inspect"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Enabled bool `json:"enabled"`
	Count   int  `json:"count"`
	MaxLogs int  `json:"maxLogs"`
}

// StatusRequest is the body of PUT /status.
type StatusRequest struct {
	Enabled *bool `json:"enabled"`
}

// ListResponse is the body of GET /logs.
type ListResponse struct {
	Logs  []inspect.Summary `json:"logs"`
	Count int               `json:"count"`
	Total int               `json:"total"`
}

// TimelineResponse is the body of GET /logs/{id}/timeline.
type TimelineResponse struct {
	ID    string                 `json:"id"`
	Items []inspect.TimelineItem `json:"items"`
}

// ExtractResponse is the body of GET /logs/{id}/extract.
type ExtractResponse struct {
	Path    string        `json:"path"`
	Results []interface{} `json:"results"`
}

func (s *Server) status() StatusResponse {
	return StatusResponse{
		Enabled: s.store.IsEnabled(),
		Count:   s.store.Count(),
		MaxLogs: s.store.MaxLogs(),
	}
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.status())
}

func (s *Server) handlePutStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := httputil.DecodeJSON(r, &req, 0); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Enabled == nil {
		httputil.WriteBadRequest(w, `"enabled" is required`)
		return
	}
	s.store.SetEnabled(*req.Enabled)
	s.log.Info("capture toggled", "enabled", *req.Enabled)
	httputil.WriteJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := inspect.CompileFilter(q.Get("filter"), q.Get("url"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	all := s.store.Logs()
	matched := filter.Apply(all)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Logs:  inspect.Summaries(matched),
		Count: len(matched),
		Total: len(all),
	})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	s.log.Info("logs cleared")
	httputil.WriteNoContent(w)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	e, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		httputil.WriteNotFound(w, "log entry not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (s *Server) handleCurl(w http.ResponseWriter, r *http.Request) {
	e, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		httputil.WriteNotFound(w, "log entry not found")
		return
	}
	httputil.WriteText(w, http.StatusOK, inspect.CURL(e.Request)+"\n")
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	e, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		httputil.WriteNotFound(w, "log entry not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TimelineResponse{ID: e.ID, Items: inspect.Timeline(e)})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.WriteBadRequest(w, `"path" query parameter is required`)
		return
	}
	e, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		httputil.WriteNotFound(w, "log entry not found")
		return
	}
	results, err := inspect.Extract(e, path)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExtractResponse{Path: path, Results: results})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := inspect.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ext := "json"
	if format == inspect.FormatHAR {
		ext = "har"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="apidiag-logs.%s"`, ext))
	if err := inspect.Export(w, format, s.store.Logs(), s.version); err != nil {
		s.log.Error("export failed", "format", format, "error", err)
	}
}
