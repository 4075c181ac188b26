package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rzbill/bifrost/internal/node"
	"github.com/rzbill/bifrost/pkg/log"
)

// Server owns the gRPC server instance and the node it serves.
type Server struct {
	n      *node.Node
	logger log.Logger
	grpc   *grpc.Server
	lis    net.Listener
}

// New constructs a gRPC server and registers the node and health services.
func New(n *node.Node, logger log.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Server{n: n, logger: logger.WithComponent("grpc")}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.logUnary)}, opts...)
	s.grpc = grpc.NewServer(opts...)
	RegisterNodeServiceServer(s.grpc, &nodeSvc{n: n, logger: s.logger})
	healthpb.RegisterHealthServer(s.grpc, &healthSvc{n: n})
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.logger.Info("grpc listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and cancels open watch streams.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.Stop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn("rpc failed", log.Str("method", info.FullMethod), log.Duration("elapsed", time.Since(start)), log.Err(err))
	} else {
		s.logger.Debug("rpc", log.Str("method", info.FullMethod), log.Duration("elapsed", time.Since(start)))
	}
	return resp, err
}

type nodeSvc struct {
	n      *node.Node
	logger log.Logger
}

func (h *nodeSvc) GetMetadataVersion(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	return wrapperspb.UInt64(uint64(h.n.MetadataVersion())), nil
}

func (h *nodeSvc) GetIdent(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st := h.n.Status()
	return Ident{
		NodeName:        h.n.Name(),
		Status:          st.String(),
		StatusCode:      int32(st),
		MetadataVersion: uint64(h.n.MetadataVersion()),
	}.toStruct()
}

func (h *nodeSvc) WatchMetadataVersion(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()
	for v := range h.n.Bifrost().WatchVersion(ctx) {
		if err := stream.SendMsg(wrapperspb.UInt64(uint64(v))); err != nil {
			return err
		}
	}
	return ctx.Err()
}
