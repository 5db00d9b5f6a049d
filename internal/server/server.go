// Package server exposes the dependency graph service over HTTP/JSON and
// gRPC. Both transports resolve the calling operator and request origin
// into the context, call the service, and map its error kinds onto
// transport status codes.
package server

import (
	"log/slog"

	"github.com/alfredjeanlab/reqgraph/internal/service"
)

// Server adapts a GraphService to the HTTP and gRPC transports.
type Server struct {
	svc    *service.GraphService
	hub    *EventHub
	logger *slog.Logger
}

// New returns a Server for svc. hub, which should also be among the
// service's publishers, feeds GET /v1/events/stream; it may be nil.
func New(svc *service.GraphService, hub *EventHub, logger *slog.Logger) *Server {
	if hub == nil {
		hub = NewEventHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, hub: hub, logger: logger}
}
