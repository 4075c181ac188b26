package grpcserver

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// NodeClient calls the node service over cc.
type NodeClient struct {
	cc grpc.ClientConnInterface
}

func NewNodeClient(cc grpc.ClientConnInterface) *NodeClient { return &NodeClient{cc: cc} }

// GetMetadataVersion returns the metadata version the node has observed.
func (c *NodeClient) GetMetadataVersion(ctx context.Context, opts ...grpc.CallOption) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, MethodGetMetadataVersion, &emptypb.Empty{}, out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// GetIdent returns the node's identity and status.
func (c *NodeClient) GetIdent(ctx context.Context, opts ...grpc.CallOption) (Ident, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetIdent, &emptypb.Empty{}, out, opts...); err != nil {
		return Ident{}, err
	}
	return identFromStruct(out), nil
}

// WatchMetadataVersion calls fn with every version the node publishes until
// fn returns an error, ctx ends, or the server closes the stream.
func (c *NodeClient) WatchMetadataVersion(ctx context.Context, fn func(uint64) error, opts ...grpc.CallOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := c.cc.NewStream(ctx, &NodeServiceDesc.Streams[0], MethodWatchMetadataVersion, opts...)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		v := new(wrapperspb.UInt64Value)
		if err := stream.RecvMsg(v); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := fn(v.GetValue()); err != nil {
			return err
		}
	}
}
