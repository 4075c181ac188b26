// Package serverrun exposes the Run entrypoint used by `bifrost server
// start`. It opens the node, serves gRPC and HTTP, and shuts everything
// down in order when the context ends or a signal arrives.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun
