package network

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const queryMethod = "/xmtp.message_api.v1.MessageApi/Query"

// MessageApiServer is the server API for the subset of MessageApi this
// package speaks. Messages are hand-encoded, so no protoc toolchain is needed.
type MessageApiServer interface {
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
}

// UnimplementedMessageApiServer can be embedded to have forward compatible implementations.
type UnimplementedMessageApiServer struct{}

func (UnimplementedMessageApiServer) Query(context.Context, *QueryRequest) (*QueryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Query not implemented")
}

// RegisterMessageApiServer registers the service on s. The server must be
// created with ServerCodec so requests decode into the hand-written messages.
func RegisterMessageApiServer(s grpc.ServiceRegistrar, srv MessageApiServer) {
	s.RegisterService(&MessageApi_ServiceDesc, srv)
}

// ServerCodec forces the package codec on a grpc.Server.
func ServerCodec() grpc.ServerOption {
	return grpc.ForceServerCodec(codec{})
}

// MessageApiClient is the client API for MessageApi.
type MessageApiClient interface {
	Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error)
}

type messageApiClient struct{ cc grpc.ClientConnInterface }

func NewMessageApiClient(cc grpc.ClientConnInterface) MessageApiClient {
	return &messageApiClient{cc: cc}
}

func (c *messageApiClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	out := new(QueryResponse)
	opts = append([]grpc.CallOption{grpc.ForceCodec(codec{})}, opts...)
	if err := c.cc.Invoke(ctx, queryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _MessageApi_Query_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MessageApiServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MessageApiServer).Query(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// MessageApi_ServiceDesc is the grpc.ServiceDesc for MessageApi service.
var MessageApi_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "xmtp.message_api.v1.MessageApi",
	HandlerType: (*MessageApiServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: _MessageApi_Query_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "message_api/v1/message_api.proto",
}
