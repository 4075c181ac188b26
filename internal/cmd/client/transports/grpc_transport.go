package transports

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcserver "github.com/rzbill/bifrost/internal/server/grpc"
)

// GrpcTransport implements NodeTransport over the node service.
type GrpcTransport struct {
	conn *grpc.ClientConn
	cli  *grpcserver.NodeClient
}

// NewGrpcTransport connects lazily to addr with insecure credentials.
func NewGrpcTransport(addr string, opts ...grpc.DialOption) (*GrpcTransport, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GrpcTransport{conn: conn, cli: grpcserver.NewNodeClient(conn)}, nil
}

func (t *GrpcTransport) MetadataVersion(ctx context.Context) (uint64, error) {
	return t.cli.GetMetadataVersion(ctx)
}

func (t *GrpcTransport) Ident(ctx context.Context) (Ident, error) {
	id, err := t.cli.GetIdent(ctx)
	if err != nil {
		return Ident{}, err
	}
	return Ident{NodeName: id.NodeName, Status: id.Status, StatusCode: id.StatusCode, MetadataVersion: id.MetadataVersion}, nil
}

func (t *GrpcTransport) WatchMetadataVersion(ctx context.Context, fn func(uint64) error) error {
	return t.cli.WatchMetadataVersion(ctx, fn)
}

func (t *GrpcTransport) Close() error { return t.conn.Close() }
