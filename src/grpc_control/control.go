package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The control service speaks well-known protobuf types only, so it is
// described by hand instead of through generated stubs.

const serviceName = "stockchatbot.control.v1.Control"

// ControlServer is the server API of the control service
type ControlServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	ListSubscriptions(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	PurgeCache(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	ClearUser(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
}

// ServiceDesc registers ControlServer on a grpc.Server
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: unary("GetStatus", ControlServer.GetStatus)},
		{MethodName: "ListSubscriptions", Handler: unary("ListSubscriptions", ControlServer.ListSubscriptions)},
		{MethodName: "PurgeCache", Handler: unary("PurgeCache", ControlServer.PurgeCache)},
		{MethodName: "ClearUser", Handler: unary("ClearUser", ControlServer.ClearUser)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockchatbot/control/v1/control.proto",
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// -----------------------------------------------------------------------------

func unary[Req any](method string, call func(ControlServer, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// ControlClient calls the control service over conn
type ControlClient struct {
	conn grpc.ClientConnInterface
}

func NewControlClient(conn grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{conn: conn}
}

func (c *ControlClient) invoke(ctx context.Context, method string, in any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetStatus", &emptypb.Empty{}, opts...)
}

func (c *ControlClient) ListSubscriptions(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListSubscriptions", &emptypb.Empty{}, opts...)
}

func (c *ControlClient) PurgeCache(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PurgeCache", &emptypb.Empty{}, opts...)
}

func (c *ControlClient) ClearUser(ctx context.Context, userID int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ClearUser", wrapperspb.Int64(userID), opts...)
}
