package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/service"
)

// ServiceName is the fully qualified gRPC service name. Every method takes
// and returns a google.protobuf.Struct holding the same JSON documents the
// HTTP API uses.
const ServiceName = "reqgraph.v1.GraphService"

// graphServiceServer is the handler type registered for ServiceName.
type graphServiceServer interface {
	invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error)
}

type rpcMethod struct {
	name string
	call func(s *Server, ctx context.Context, in *structpb.Struct) (any, error)
}

var rpcMethods = []rpcMethod{
	{"EnsureGraph", (*Server).rpcEnsureGraph},
	{"GetDependencyView", (*Server).rpcGetDependencyView},
	{"AddEdge", (*Server).rpcAddEdge},
	{"RemoveEdge", (*Server).rpcRemoveEdge},
	{"SetParent", (*Server).rpcSetParent},
	{"ClearParent", (*Server).rpcClearParent},
	{"UpdateSubtaskProgress", (*Server).rpcUpdateSubtaskProgress},
	{"SetGraphConfig", (*Server).rpcSetGraphConfig},
	{"RefreshCriticalPath", (*Server).rpcRefreshCriticalPath},
	{"GetHistory", (*Server).rpcGetHistory},
	{"RecordChange", (*Server).rpcRecordChange},
	{"Health", (*Server).rpcHealth},
}

// ServiceDesc describes the GraphService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*graphServiceServer)(nil),
	Methods:     methodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "reqgraph/v1/graph.proto",
}

func methodDescs() []grpc.MethodDesc {
	out := make([]grpc.MethodDesc, 0, len(rpcMethods))
	for _, m := range rpcMethods {
		name := m.name
		out = append(out, grpc.MethodDesc{
			MethodName: name,
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				gs := srv.(graphServiceServer)
				if interceptor == nil {
					return gs.invoke(ctx, name, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
				handler := func(ctx context.Context, req any) (any, error) {
					return gs.invoke(ctx, name, req.(*structpb.Struct))
				}
				return interceptor(ctx, in, info, handler)
			},
		})
	}
	return out
}

// NewGRPCServer creates a gRPC server with standard interceptors and
// registers the GraphService. When authToken is non-empty every method
// except Health requires a bearer token.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
			MetadataInterceptor,
		),
	)
	srv.RegisterService(&ServiceDesc, s)
	return srv
}

func (s *Server) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	for _, m := range rpcMethods {
		if m.name != method {
			continue
		}
		out, err := m.call(s, ctx, in)
		if err != nil {
			return nil, grpcError(err)
		}
		resp, err := toStruct(out)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return resp, nil
	}
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func decodeRequest(in *structpb.Struct, v any) error {
	if err := fromStruct(in, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func parseEdgeType(s string) (model.EdgeType, error) {
	t, ok := model.ParseEdgeType(s)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "unknown edge type %q", s)
	}
	return t, nil
}

type idRequest struct {
	ID string `json:"id"`
}

type empty struct{}

func (s *Server) rpcEnsureGraph(ctx context.Context, in *structpb.Struct) (any, error) {
	var req idRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	g, created, err := s.svc.EnsureGraph(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return ensureGraphResponse{Graph: g, Created: created}, nil
}

func (s *Server) rpcGetDependencyView(ctx context.Context, in *structpb.Struct) (any, error) {
	var req idRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	return s.svc.GetDependencyView(ctx, req.ID)
}

type edgeRequest struct {
	Source         string         `json:"source"`
	Target         string         `json:"target"`
	Type           string         `json:"type"`
	SourceSnapshot model.Snapshot `json:"source_snapshot"`
	TargetSnapshot model.Snapshot `json:"target_snapshot"`
	Reason         string         `json:"reason,omitempty"`
}

func (s *Server) rpcAddEdge(ctx context.Context, in *structpb.Struct) (any, error) {
	var req edgeRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	edgeType, err := parseEdgeType(req.Type)
	if err != nil {
		return nil, err
	}
	meta := service.EdgeMeta{Source: req.SourceSnapshot, Target: req.TargetSnapshot, Reason: req.Reason}
	if err := s.svc.AddEdge(ctx, req.Source, req.Target, edgeType, meta); err != nil {
		return nil, err
	}
	return model.GraphEdge{Source: req.Source, Target: req.Target, Type: edgeType}, nil
}

func (s *Server) rpcRemoveEdge(ctx context.Context, in *structpb.Struct) (any, error) {
	var req edgeRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	edgeType, err := parseEdgeType(req.Type)
	if err != nil {
		return nil, err
	}
	if err := s.svc.RemoveEdge(ctx, req.Source, req.Target, edgeType); err != nil {
		return nil, err
	}
	return empty{}, nil
}

type parentRequest struct {
	Child  string `json:"child"`
	Parent string `json:"parent"`
}

func (s *Server) rpcSetParent(ctx context.Context, in *structpb.Struct) (any, error) {
	var req parentRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if err := s.svc.SetParent(ctx, req.Child, req.Parent); err != nil {
		return nil, err
	}
	return empty{}, nil
}

func (s *Server) rpcClearParent(ctx context.Context, in *structpb.Struct) (any, error) {
	var req parentRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if err := s.svc.ClearParent(ctx, req.Child); err != nil {
		return nil, err
	}
	return empty{}, nil
}

type subtaskProgressRequest struct {
	Parent   string `json:"parent"`
	Child    string `json:"child"`
	Progress int    `json:"progress"`
}

func (s *Server) rpcUpdateSubtaskProgress(ctx context.Context, in *structpb.Struct) (any, error) {
	var req subtaskProgressRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if err := s.svc.UpdateSubtaskProgress(ctx, req.Parent, req.Child, req.Progress); err != nil {
		return nil, err
	}
	return empty{}, nil
}

type graphConfigRequest struct {
	ID     string                 `json:"id"`
	Config model.GraphConfigPatch `json:"config"`
}

func (s *Server) rpcSetGraphConfig(ctx context.Context, in *structpb.Struct) (any, error) {
	var req graphConfigRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	return s.svc.SetGraphConfig(ctx, req.ID, req.Config)
}

func (s *Server) rpcRefreshCriticalPath(ctx context.Context, in *structpb.Struct) (any, error) {
	var req idRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	path, err := s.svc.RefreshCriticalPath(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"critical_path": path}, nil
}

type historyRequest struct {
	ID     string              `json:"id"`
	Filter model.HistoryFilter `json:"filter"`
}

func (s *Server) rpcGetHistory(ctx context.Context, in *structpb.Struct) (any, error) {
	var req historyRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	evs, err := s.svc.GetHistory(ctx, req.ID, req.Filter)
	if err != nil {
		return nil, err
	}
	if evs == nil {
		evs = []*model.HistoryEvent{}
	}
	return map[string]any{"events": evs}, nil
}

type recordChangeRequest struct {
	Event *model.HistoryEvent `json:"event"`
}

func (s *Server) rpcRecordChange(ctx context.Context, in *structpb.Struct) (any, error) {
	var req recordChangeRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	return s.svc.RecordChange(ctx, req.Event)
}

func (s *Server) rpcHealth(context.Context, *structpb.Struct) (any, error) {
	return map[string]string{"status": "ok"}, nil
}

// FullMethod returns the gRPC method path for a GraphService method name.
func FullMethod(name string) string {
	return fmt.Sprintf("/%s/%s", ServiceName, name)
}
