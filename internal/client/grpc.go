package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/server"
)

// GRPCClient implements GraphClient using the gRPC transport. Requests and
// responses travel as google.protobuf.Struct documents.
type GRPCClient struct {
	conn *grpc.ClientConn
	opts options
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr string, opts ...Option) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return NewGRPCClientConn(conn, opts...), nil
}

// NewGRPCClientConn wraps an existing connection. Close closes conn.
func NewGRPCClientConn(conn *grpc.ClientConn, opts ...Option) *GRPCClient {
	return &GRPCClient{conn: conn, opts: buildOptions(opts)}
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// --- Records ---

func (c *GRPCClient) EnsureGraph(ctx context.Context, id string) (*EnsureGraphResponse, error) {
	var resp EnsureGraphResponse
	if err := c.invoke(ctx, "EnsureGraph", map[string]string{"id": id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) GetDependencyView(ctx context.Context, id string) (*model.DependencyView, error) {
	var view model.DependencyView
	if err := c.invoke(ctx, "GetDependencyView", map[string]string{"id": id}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *GRPCClient) SetGraphConfig(ctx context.Context, id string, patch model.GraphConfigPatch) (*model.GraphConfig, error) {
	var cfg model.GraphConfig
	if err := c.invoke(ctx, "SetGraphConfig", map[string]any{"id": id, "config": patch}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *GRPCClient) RefreshCriticalPath(ctx context.Context, id string) ([]string, error) {
	var resp struct {
		CriticalPath []string `json:"critical_path"`
	}
	if err := c.invoke(ctx, "RefreshCriticalPath", map[string]string{"id": id}, &resp); err != nil {
		return nil, err
	}
	return resp.CriticalPath, nil
}

// --- Edges ---

func (c *GRPCClient) AddEdge(ctx context.Context, req *AddEdgeRequest) (*model.GraphEdge, error) {
	var edge model.GraphEdge
	if err := c.invoke(ctx, "AddEdge", req, &edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

func (c *GRPCClient) RemoveEdge(ctx context.Context, source, target string, edgeType model.EdgeType) error {
	req := map[string]string{"source": source, "target": target, "type": string(edgeType)}
	return c.invoke(ctx, "RemoveEdge", req, nil)
}

func (c *GRPCClient) SetParent(ctx context.Context, child, parent string) error {
	return c.invoke(ctx, "SetParent", map[string]string{"child": child, "parent": parent}, nil)
}

func (c *GRPCClient) ClearParent(ctx context.Context, child string) error {
	return c.invoke(ctx, "ClearParent", map[string]string{"child": child}, nil)
}

func (c *GRPCClient) UpdateSubtaskProgress(ctx context.Context, parent, child string, progress int) error {
	req := map[string]any{"parent": parent, "child": child, "progress": progress}
	return c.invoke(ctx, "UpdateSubtaskProgress", req, nil)
}

// --- History ---

func (c *GRPCClient) GetHistory(ctx context.Context, id string, filter model.HistoryFilter) ([]*model.HistoryEvent, error) {
	var resp struct {
		Events []*model.HistoryEvent `json:"events"`
	}
	if err := c.invoke(ctx, "GetHistory", map[string]any{"id": id, "filter": filter}, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *GRPCClient) RecordChange(ctx context.Context, e *model.HistoryEvent) (*model.HistoryEvent, error) {
	var stored model.HistoryEvent
	if err := c.invoke(ctx, "RecordChange", map[string]any{"event": e}, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.invoke(ctx, "Health", struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// invoke sends req as a Struct to the named GraphService method and decodes
// the reply into result. If result is nil the reply is discarded.
func (c *GRPCClient) invoke(ctx context.Context, method string, req, result any) error {
	in, err := encodeStruct(req)
	if err != nil {
		return err
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(c.outgoing(ctx), server.FullMethod(method), in, out); err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	b, err := protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(b, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *GRPCClient) outgoing(ctx context.Context) context.Context {
	var kv []string
	if c.opts.token != "" {
		kv = append(kv, "authorization", "Bearer "+c.opts.token)
	}
	if c.opts.actor != "" {
		kv = append(kv, "x-actor", c.opts.actor)
	}
	if c.opts.sessionID != "" {
		kv = append(kv, "x-session-id", c.opts.sessionID)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func encodeStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return s, nil
}
