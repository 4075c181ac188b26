// Package httpserver serves the node's HTTP surface: /v1/healthz, the
// bifrost metadata views under /v1/bifrost, and Prometheus metrics at
// /metrics.
//
// Example:
//
//	s := httpserver.New(n, logger)
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
