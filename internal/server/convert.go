package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/reqgraph/internal/service"
)

// ErrorDomain is the ErrorInfo domain attached to gRPC errors. The reason
// carries the service.Kind.
const ErrorDomain = "reqgraph"

// toStruct converts v to a structpb.Struct through its JSON encoding.
// v must encode as a JSON object.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

// fromStruct decodes in into v through its JSON encoding.
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// grpcCode maps a service error kind to a gRPC status code.
func grpcCode(k service.Kind) codes.Code {
	switch k {
	case service.KindNotFound:
		return codes.NotFound
	case service.KindInvalidArgument, service.KindSelfReference:
		return codes.InvalidArgument
	case service.KindCycleDetected, service.KindDuplicateParent:
		return codes.FailedPrecondition
	case service.KindConcurrentModification:
		return codes.Aborted
	}
	return codes.Internal
}

// grpcError converts a service error to a status error whose ErrorInfo
// reason is the error kind.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	kind := service.KindOf(err)
	code := grpcCode(kind)
	msg := err.Error()
	if code == codes.Internal {
		msg = "internal error"
	}
	st := status.New(code, msg)
	if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: string(kind), Domain: ErrorDomain}); derr == nil {
		st = detailed
	}
	return st.Err()
}
