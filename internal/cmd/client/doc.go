// Package client contains the Cobra commands of the `bifrost` client.
//
// The node group talks to a running node over gRPC (default) or HTTP:
//
//	bifrost node version
//	bifrost node status --require-alive
//	bifrost node watch --count 3
//	bifrost node version --transport http --addr http://127.0.0.1:8080
//
// The address defaults to $BIFROST_GRPC (127.0.0.1:50051) or $BIFROST_HTTP
// (http://127.0.0.1:8080).
//
// The log group opens a stopped node's data directory directly:
//
//	bifrost log dump --data-dir ./data --log 0 --from 1 --limit 20
//	bifrost log dump --log 0 --filter 'dest_kind == "processor" && partition_key % 2u == 0u'
//	bifrost log trim --log 0 --to 100
//	bifrost log reconfigure --log 0 --kind local
//
// dump prints one JSON object per record. --filter takes a CEL expression
// over the record's header fields and payload (text, and json when the
// payload parses as JSON).
package client
