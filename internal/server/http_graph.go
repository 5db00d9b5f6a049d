package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/service"
)

// ensureGraphResponse is the body of POST /v1/requirements/{id}/graph.
type ensureGraphResponse struct {
	Graph   *model.DependencyGraph `json:"graph"`
	Created bool                   `json:"created"`
}

// handleEnsureGraph handles POST /v1/requirements/{id}/graph.
func (s *Server) handleEnsureGraph(w http.ResponseWriter, r *http.Request) {
	g, created, err := s.svc.EnsureGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, ensureGraphResponse{Graph: g, Created: created})
}

// handleGetView handles GET /v1/requirements/{id}/graph.
func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetDependencyView(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// addEdgeRequest is the JSON body for POST /v1/requirements/{id}/edges.
// The path id is the edge source.
type addEdgeRequest struct {
	Target         string         `json:"target"`
	Type           string         `json:"type"`
	SourceSnapshot model.Snapshot `json:"source_snapshot"`
	TargetSnapshot model.Snapshot `json:"target_snapshot"`
	Reason         string         `json:"reason,omitempty"`
}

// handleAddEdge handles POST /v1/requirements/{id}/edges.
func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("id")

	var req addEdgeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	edgeType, ok := model.ParseEdgeType(req.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown edge type %q", req.Type))
		return
	}

	meta := service.EdgeMeta{Source: req.SourceSnapshot, Target: req.TargetSnapshot, Reason: req.Reason}
	if err := s.svc.AddEdge(r.Context(), source, req.Target, edgeType, meta); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.GraphEdge{Source: source, Target: req.Target, Type: edgeType})
}

// handleRemoveEdge handles DELETE /v1/requirements/{id}/edges.
// target and type are taken from query parameters.
func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "target query parameter is required")
		return
	}
	edgeType, ok := model.ParseEdgeType(q.Get("type"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown edge type %q", q.Get("type")))
		return
	}

	if err := s.svc.RemoveEdge(r.Context(), r.PathValue("id"), target, edgeType); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setParentRequest is the JSON body for PUT /v1/requirements/{id}/parent.
type setParentRequest struct {
	ParentID string `json:"parent_id"`
}

// handleSetParent handles PUT /v1/requirements/{id}/parent.
func (s *Server) handleSetParent(w http.ResponseWriter, r *http.Request) {
	var req setParentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ParentID == "" {
		writeError(w, http.StatusBadRequest, "parent_id is required")
		return
	}
	if err := s.svc.SetParent(r.Context(), r.PathValue("id"), req.ParentID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearParent handles DELETE /v1/requirements/{id}/parent.
func (s *Server) handleClearParent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearParent(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// progressRequest is the JSON body for
// PUT /v1/requirements/{id}/subtasks/{child}/progress.
type progressRequest struct {
	Progress *int `json:"progress"`
}

// handleSubtaskProgress handles PUT /v1/requirements/{id}/subtasks/{child}/progress.
func (s *Server) handleSubtaskProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Progress == nil {
		writeError(w, http.StatusBadRequest, "progress is required")
		return
	}
	if err := s.svc.UpdateSubtaskProgress(r.Context(), r.PathValue("id"), r.PathValue("child"), *req.Progress); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetGraphConfig handles PUT /v1/requirements/{id}/graph-config.
// The body is a partial config; omitted fields keep their current value.
func (s *Server) handleSetGraphConfig(w http.ResponseWriter, r *http.Request) {
	var patch model.GraphConfigPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cfg, err := s.svc.SetGraphConfig(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleRefreshCriticalPath handles POST /v1/requirements/{id}/critical-path.
func (s *Server) handleRefreshCriticalPath(w http.ResponseWriter, r *http.Request) {
	path, err := s.svc.RefreshCriticalPath(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"critical_path": path})
}

// handleGetHistory handles GET /v1/requirements/{id}/history.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	evs, err := s.svc.GetHistory(r.Context(), r.PathValue("id"), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if evs == nil {
		evs = []*model.HistoryEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

// handleRecordChange handles POST /v1/requirements/{id}/history.
func (s *Server) handleRecordChange(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var e model.HistoryEvent
	if err := decodeBody(r, &e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if e.RequirementID != "" && e.RequirementID != id {
		writeError(w, http.StatusBadRequest, "requirement_id does not match the path")
		return
	}
	e.RequirementID = id

	stored, err := s.svc.RecordChange(r.Context(), &e)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// parseHistoryFilter reads a HistoryFilter from query parameters:
// action (comma-separated), operator, since and until (RFC 3339), limit,
// and order (asc or desc).
func parseHistoryFilter(q url.Values) (model.HistoryFilter, error) {
	var f model.HistoryFilter
	if v := q.Get("action"); v != "" {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				f.Actions = append(f.Actions, model.HistoryAction(a))
			}
		}
	}
	f.OperatorID = q.Get("operator")
	for _, p := range []struct {
		key string
		dst **time.Time
	}{
		{"since", &f.Since},
		{"until", &f.Until},
	} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid %s: %q", p.key, v)
		}
		*p.dst = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid limit: %q", v)
		}
		f.Limit = n
	}
	switch q.Get("order") {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return f, fmt.Errorf("invalid order: %q", q.Get("order"))
	}
	return f, nil
}
