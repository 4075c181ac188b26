package grpcserver

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	cfgpkg "github.com/rzbill/bifrost/internal/config"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/node"
)

const bufSize = 1 << 20

func openNode(t *testing.T) *node.Node {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.NodeName = "grpc-test"
	cfg.Bifrost.NumLogs = 1
	n, err := node.Open(context.Background(), node.Options{Config: cfg, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("node open: %v", err)
	}
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func dial(t *testing.T, n *node.Node) *grpc.ClientConn {
	t.Helper()
	srv := New(n, nil)
	lis := bufconn.Listen(bufSize)
	go func() { _ = srv.grpc.Serve(lis) }()
	t.Cleanup(srv.Close)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGetMetadataVersion(t *testing.T) {
	n := openNode(t)
	c := NewNodeClient(dial(t, n))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := c.GetMetadataVersion(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if logs.Version(v) != n.MetadataVersion() {
		t.Fatalf("version %d, node has %s", v, n.MetadataVersion())
	}
}

func TestGetIdentTracksStatus(t *testing.T) {
	n := openNode(t)
	c := NewNodeClient(dial(t, n))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := c.GetIdent(ctx)
	if err != nil {
		t.Fatalf("ident: %v", err)
	}
	if id.NodeName != "grpc-test" || id.Status != "starting_up" || id.StatusCode != int32(node.StatusStartingUp) {
		t.Fatalf("unexpected ident before start: %+v", id)
	}
	n.Start()
	id, err = c.GetIdent(ctx)
	if err != nil {
		t.Fatalf("ident: %v", err)
	}
	if id.Status != "alive" || id.MetadataVersion != uint64(n.MetadataVersion()) {
		t.Fatalf("unexpected ident after start: %+v", id)
	}
}

func TestHealthServingOnlyWhenAlive(t *testing.T) {
	n := openNode(t)
	hc := healthpb.NewHealthClient(dial(t, n))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := hc.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before start, got %s", res.GetStatus())
	}
	n.Start()
	res, err = hc.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", res.GetStatus())
	}
}

var errEnough = errors.New("enough")

func TestWatchMetadataVersion(t *testing.T) {
	n := openNode(t)
	c := NewNodeClient(dial(t, n))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := n.MetadataVersion()
	seen := make(chan uint64, 8)
	done := make(chan error, 1)
	go func() {
		done <- c.WatchMetadataVersion(ctx, func(v uint64) error {
			seen <- v
			if logs.Version(v) > start {
				return errEnough
			}
			return nil
		})
	}()

	if v := <-seen; logs.Version(v) != start {
		t.Fatalf("first watched version %d, want %s", v, start)
	}
	if _, err := n.Bifrost().Reconfigure(ctx, 0, logs.ProviderLocal); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if v := <-seen; logs.Version(v) <= start {
		t.Fatalf("expected a newer version, got %d", v)
	}
	if err := <-done; !errors.Is(err, errEnough) {
		t.Fatalf("watch returned %v", err)
	}
}
