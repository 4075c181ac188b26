package serverrun

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/rzbill/bifrost/internal/config"
	"github.com/rzbill/bifrost/internal/node"
	grpcserver "github.com/rzbill/bifrost/internal/server/grpc"
	httpserver "github.com/rzbill/bifrost/internal/server/http"
	logpkg "github.com/rzbill/bifrost/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Log.
	Logger logpkg.Logger
}

// Run opens the node, starts the gRPC and HTTP servers and blocks until ctx
// is cancelled or a server fails.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	procLogger := opts.Logger
	if procLogger == nil {
		var err error
		procLogger, err = logpkg.ApplyConfig(&logpkg.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return err
		}
		logpkg.RedirectStdLog(procLogger)
	}

	procLogger.Info("Starting bifrost node",
		logpkg.Str("name", cfg.NodeName),
		logpkg.Str("data_dir", cfg.ResolveDataDir()),
		logpkg.Str("grpc", cfg.GRPCAddr),
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("fsync", cfg.Fsync),
		logpkg.Str("provider", cfg.Bifrost.DefaultProvider),
		logpkg.Uint64("logs", cfg.Bifrost.NumLogs),
	)

	n, err := node.Open(sctx, node.Options{Config: cfg, Logger: procLogger})
	if err != nil {
		return err
	}
	defer n.Close()

	gsrv := grpcserver.New(n, procLogger)
	hsrv := httpserver.New(n, procLogger)

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(sctx, cfg.GRPCAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("grpc server failed", logpkg.Err(err))
			errCh <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.HTTPAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("http server failed", logpkg.Err(err))
			errCh <- err
		}
	}()
	n.Start()

	var runErr error
	select {
	case <-sctx.Done():
	case runErr = <-errCh:
	}
	procLogger.Info("Stopping bifrost node", logpkg.Str("name", cfg.NodeName))
	// Servers go down before the node so no request races the store closing.
	gsrv.Close()
	hsrv.Close()
	wg.Wait()
	return errors.Join(runErr, n.Close())
}
