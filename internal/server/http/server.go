package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rzbill/bifrost/internal/node"
	"github.com/rzbill/bifrost/internal/server/http/controllers"
	"github.com/rzbill/bifrost/pkg/log"
)

type Server struct {
	n      *node.Node
	logger log.Logger
	srv    *http.Server
	lis    net.Listener
}

// New builds the HTTP server: health, bifrost metadata views and the
// node's Prometheus registry at /metrics.
func New(n *node.Node, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	mux := http.NewServeMux()
	controllers.NewControllerRegistry(n).RegisterRoutes(mux)
	mux.Handle("GET /metrics", n.Metrics().Handler())
	s := &Server{n: n, logger: logger.WithComponent("http")}
	s.srv = &http.Server{Handler: s.logRequests(cors(mux)), ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) Close() {
	_ = s.srv.Close()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", log.Str("method", r.Method), log.Str("path", r.URL.Path), log.Duration("elapsed", time.Since(start)))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
