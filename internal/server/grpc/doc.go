// Package grpcserver serves the node service (bifrost.node.v1.NodeService)
// and the standard gRPC health service for a node. The node service is
// registered from a hand-written service descriptor over protobuf
// well-known types; NodeClient is its client.
//
// Example:
//
//	n, _ := node.Open(ctx, node.Options{Config: config.Default()})
//	n.Start()
//	s := grpcserver.New(n, logger)
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
