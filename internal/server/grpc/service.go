package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the node service.
const ServiceName = "bifrost.node.v1.NodeService"

const (
	MethodGetMetadataVersion   = "/" + ServiceName + "/GetMetadataVersion"
	MethodGetIdent             = "/" + ServiceName + "/GetIdent"
	MethodWatchMetadataVersion = "/" + ServiceName + "/WatchMetadataVersion"
)

// NodeServiceServer is the server API of the node service. Messages are
// protobuf well-known types, so no generated code is needed.
type NodeServiceServer interface {
	GetMetadataVersion(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
	GetIdent(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchMetadataVersion(*emptypb.Empty, grpc.ServerStream) error
}

// RegisterNodeServiceServer registers srv on s.
func RegisterNodeServiceServer(s grpc.ServiceRegistrar, srv NodeServiceServer) {
	s.RegisterService(&NodeServiceDesc, srv)
}

// NodeServiceDesc describes the node service for grpc registration and for
// clients opening the watch stream.
var NodeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NodeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetMetadataVersion", Handler: getMetadataVersionHandler},
		{MethodName: "GetIdent", Handler: getIdentHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchMetadataVersion", Handler: watchMetadataVersionHandler, ServerStreams: true},
	},
	Metadata: "bifrost/node/v1/node.proto",
}

func getMetadataVersionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NodeServiceServer).GetMetadataVersion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetMetadataVersion}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NodeServiceServer).GetMetadataVersion(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getIdentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NodeServiceServer).GetIdent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetIdent}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NodeServiceServer).GetIdent(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchMetadataVersionHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(NodeServiceServer).WatchMetadataVersion(in, stream)
}
