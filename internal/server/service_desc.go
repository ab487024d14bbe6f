package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "toolcanon.v1.ToolCanonService"

const (
	methodCanonicalize = "/" + ServiceName + "/Canonicalize"
	methodDetect       = "/" + ServiceName + "/Detect"
	methodEmit         = "/" + ServiceName + "/Emit"
)

// ToolCanonServiceServer is the server API for ToolCanonService. Every
// message is a google.protobuf.Struct carrying the HTTP API's JSON shapes.
type ToolCanonServiceServer interface {
	Canonicalize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Detect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Emit(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterToolCanonServiceServer registers srv on s.
func RegisterToolCanonServiceServer(s grpc.ServiceRegistrar, srv ToolCanonServiceServer) {
	s.RegisterService(&toolCanonServiceDesc, srv)
}

var toolCanonServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ToolCanonServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Canonicalize", Handler: canonicalizeHandler},
		{MethodName: "Detect", Handler: detectHandler},
		{MethodName: "Emit", Handler: emitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "toolcanon/v1/toolcanon.proto",
}

type unaryMethod func(ToolCanonServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(ToolCanonServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	canonicalizeHandler = unaryHandler(methodCanonicalize, ToolCanonServiceServer.Canonicalize)
	detectHandler       = unaryHandler(methodDetect, ToolCanonServiceServer.Detect)
	emitHandler         = unaryHandler(methodEmit, ToolCanonServiceServer.Emit)
)

// Client is a typed client for ToolCanonService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Canonicalize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCanonicalize, in, opts...)
}

func (c *Client) Detect(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodDetect, in, opts...)
}

func (c *Client) Emit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodEmit, in, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
