package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/reqgraph/internal/history"
	"github.com/alfredjeanlab/reqgraph/internal/service"
)

// Request headers read by RequestContext.
const (
	HeaderActor     = "X-Actor"
	HeaderRequestID = "X-Request-ID"
	HeaderSessionID = "X-Session-ID"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/requirements/{id}/graph", s.handleEnsureGraph)
	mux.HandleFunc("GET /v1/requirements/{id}/graph", s.handleGetView)
	mux.HandleFunc("POST /v1/requirements/{id}/edges", s.handleAddEdge)
	mux.HandleFunc("DELETE /v1/requirements/{id}/edges", s.handleRemoveEdge)
	mux.HandleFunc("PUT /v1/requirements/{id}/parent", s.handleSetParent)
	mux.HandleFunc("DELETE /v1/requirements/{id}/parent", s.handleClearParent)
	mux.HandleFunc("PUT /v1/requirements/{id}/subtasks/{child}/progress", s.handleSubtaskProgress)
	mux.HandleFunc("PUT /v1/requirements/{id}/graph-config", s.handleSetGraphConfig)
	mux.HandleFunc("POST /v1/requirements/{id}/critical-path", s.handleRefreshCriticalPath)
	mux.HandleFunc("GET /v1/requirements/{id}/history", s.handleGetHistory)
	mux.HandleFunc("POST /v1/requirements/{id}/history", s.handleRecordChange)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(authToken, RequestContext(mux))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RequestContext attaches the operator from the X-Actor header and the
// request origin to the request context.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if actor := strings.TrimSpace(r.Header.Get(HeaderActor)); actor != "" {
			ctx = service.WithActor(ctx, actor)
		}
		ctx = history.WithOrigin(ctx, history.Origin{
			Source:    "api",
			UserAgent: r.UserAgent(),
			IPAddress: clientIP(r),
			SessionID: r.Header.Get(HeaderSessionID),
			RequestID: r.Header.Get(HeaderRequestID),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP returns the first X-Forwarded-For hop, or the remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// httpStatus maps a service error kind to an HTTP status code.
func httpStatus(k service.Kind) int {
	switch k {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidArgument, service.KindSelfReference:
		return http.StatusBadRequest
	case service.KindCycleDetected, service.KindDuplicateParent, service.KindConcurrentModification:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError writes err with the status and code of its kind.
// Storage failures are logged and reported without their cause.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status := httpStatus(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: string(kind)})
}

// decodeBody decodes the JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
