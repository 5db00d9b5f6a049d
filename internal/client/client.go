// Package client provides a transport-agnostic interface for the reqgraph
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/server"
	"github.com/alfredjeanlab/reqgraph/internal/service"
)

// GraphClient is the interface the reqgraph CLI uses to talk to the server.
// It is implemented by HTTPClient (default) and GRPCClient.
type GraphClient interface {
	// Records
	EnsureGraph(ctx context.Context, id string) (*EnsureGraphResponse, error)
	GetDependencyView(ctx context.Context, id string) (*model.DependencyView, error)
	SetGraphConfig(ctx context.Context, id string, patch model.GraphConfigPatch) (*model.GraphConfig, error)
	RefreshCriticalPath(ctx context.Context, id string) ([]string, error)

	// Edges
	AddEdge(ctx context.Context, req *AddEdgeRequest) (*model.GraphEdge, error)
	RemoveEdge(ctx context.Context, source, target string, edgeType model.EdgeType) error
	SetParent(ctx context.Context, child, parent string) error
	ClearParent(ctx context.Context, child string) error
	UpdateSubtaskProgress(ctx context.Context, parent, child string, progress int) error

	// History
	GetHistory(ctx context.Context, id string, filter model.HistoryFilter) ([]*model.HistoryEvent, error)
	RecordChange(ctx context.Context, e *model.HistoryEvent) (*model.HistoryEvent, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// EnsureGraphResponse is the response from EnsureGraph.
type EnsureGraphResponse struct {
	Graph   *model.DependencyGraph `json:"graph"`
	Created bool                   `json:"created"`
}

// AddEdgeRequest holds parameters for adding an edge. For a blocking edge
// Source blocks Target; for a parent edge Source is the parent.
type AddEdgeRequest struct {
	Source         string         `json:"source"`
	Target         string         `json:"target"`
	Type           model.EdgeType `json:"type"`
	SourceSnapshot model.Snapshot `json:"source_snapshot"`
	TargetSnapshot model.Snapshot `json:"target_snapshot"`
	Reason         string         `json:"reason,omitempty"`
}

// Option configures a client.
type Option func(*options)

type options struct {
	token      string
	actor      string
	sessionID  string
	httpClient *http.Client
}

// WithToken sets the bearer token sent on every call.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithActor sets the operator recorded on history written by this client.
func WithActor(actor string) Option {
	return func(o *options) { o.actor = actor }
}

// WithSessionID sets the session id recorded on history written by this
// client.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// WithHTTPClient replaces the *http.Client used by HTTPClient. It has no
// effect on the gRPC client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// KindOf returns the service error kind carried by err, whichever transport
// produced it. It returns "" when err carries no kind.
func KindOf(err error) service.Kind {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return service.Kind(apiErr.Code)
	}
	var ge *service.GraphError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	if st, ok := status.FromError(err); ok {
		for _, d := range st.Details() {
			if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == server.ErrorDomain {
				return service.Kind(info.Reason)
			}
		}
	}
	return ""
}
