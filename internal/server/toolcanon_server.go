// Package server exposes the canonicalizer over gRPC.
package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/triage-ai/toolcanon/internal/emitter"
	"github.com/triage-ai/toolcanon/internal/model"
	"github.com/triage-ai/toolcanon/internal/service"
	"github.com/triage-ai/toolcanon/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToolCanonServer implements ToolCanonServiceServer.
type ToolCanonServer struct {
	svc    *service.Service
	store  *store.ToolStore // optional
	logger *zap.Logger
}

// NewToolCanonServer creates a ToolCanonServer. toolStore may be nil, in
// which case canonicalize requests asking to store fail with Unavailable.
func NewToolCanonServer(svc *service.Service, toolStore *store.ToolStore, logger *zap.Logger) *ToolCanonServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolCanonServer{svc: svc, store: toolStore, logger: logger}
}

// NewGRPCServer builds a grpc.Server with the canonicalizer and the standard
// health service registered and reporting SERVING.
func NewGRPCServer(srv *ToolCanonServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(opts...)
	RegisterToolCanonServiceServer(grpcServer, srv)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return grpcServer, healthServer
}

// Canonicalize takes {tool_def, source_format?, store?} and returns
// {tool, warnings, source_format_detected, stored_id?}.
func (s *ToolCanonServer) Canonicalize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := req.AsMap()
	doc, err := toolDef(in)
	if err != nil {
		return nil, err
	}
	ctx = service.WithSource(ctx, "grpc")

	var result model.CanonicalizationResult
	if sf, _ := in["source_format"].(string); sf != "" {
		f, perr := model.ParseFormat(sf)
		if perr != nil {
			return nil, status.Errorf(codes.InvalidArgument, "%v", perr)
		}
		result, err = s.svc.CanonicalizeAs(ctx, doc, f)
	} else {
		result, err = s.svc.Canonicalize(ctx, doc)
	}
	if err != nil {
		return nil, s.serviceError(err)
	}

	out, err := toJSONMap(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	if out["warnings"] == nil {
		out["warnings"] = []any{}
	}

	if wantStore, _ := in["store"].(bool); wantStore {
		if s.store == nil {
			return nil, status.Error(codes.Unavailable, "tool store not configured")
		}
		id, err := s.store.Save(ctx, result.Tool, store.Tags{})
		if err != nil {
			s.logger.Error("failed to store canonical tool", zap.Error(err))
			return nil, status.Errorf(codes.Internal, "store tool: %v", err)
		}
		out["stored_id"] = id
	}
	return newStruct(out)
}

// Detect takes {tool_def} and returns {format, confidence}.
func (s *ToolCanonServer) Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc, err := toolDef(req.AsMap())
	if err != nil {
		return nil, err
	}
	ctx = service.WithSource(ctx, "grpc")

	f, err := s.svc.DetectFormat(ctx, doc)
	if err != nil {
		return nil, s.serviceError(err)
	}
	scores, err := s.svc.Confidence(ctx, doc)
	if err != nil {
		return nil, s.serviceError(err)
	}
	confidence := make(map[string]any, len(scores))
	for k, v := range scores {
		confidence[string(k)] = v
	}
	return newStruct(map[string]any{"format": string(f), "confidence": confidence})
}

// Emit takes {tool, target} and returns the emitted document.
func (s *ToolCanonServer) Emit(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := req.AsMap()
	targetName, _ := in["target"].(string)
	target, err := emitter.ParseTarget(targetName)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	raw, ok := in["tool"].(map[string]any)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "tool must be an object")
	}
	tool, err := model.ToolFromMap(raw)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	out, err := emitter.Emit(target, tool)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	normalized, err := toJSONMap(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return newStruct(normalized)
}

func (s *ToolCanonServer) serviceError(err error) error {
	if errors.Is(err, service.ErrNotRunning) {
		return status.Error(codes.Unavailable, err.Error())
	}
	s.logger.Error("canonicalizer service error", zap.Error(err))
	return status.Errorf(codes.Internal, "%v", err)
}

func toolDef(in map[string]any) (map[string]any, error) {
	doc, ok := in["tool_def"].(map[string]any)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "tool_def must be an object")
	}
	return doc, nil
}

// toJSONMap round-trips v through JSON so that every value is one structpb accepts.
func toJSONMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode struct: %v", err)
	}
	return st, nil
}
