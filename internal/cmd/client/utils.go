package client

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"unicode/utf8"

	"github.com/rzbill/bifrost/internal/bifrost"
)

// grpcAddrFromEnv returns the node gRPC address from BIFROST_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("BIFROST_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// httpURLFromEnv returns the node HTTP base URL from BIFROST_HTTP or a default.
func httpURLFromEnv() string {
	if u := os.Getenv("BIFROST_HTTP"); u != "" {
		return u
	}
	return "http://127.0.0.1:8080"
}

// decodedPayload returns one of payload_json, payload_text, or payload_b64.
func decodedPayload(out map[string]any, payload []byte) {
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return
		}
	}
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return
	}
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
}

// recordJSON flattens a record for line-oriented output.
func recordJSON(rec bifrost.LogRecord) map[string]any {
	h := rec.Envelope.Header
	out := map[string]any{
		"log_id":        uint64(rec.LogID),
		"lsn":           uint64(rec.LSN),
		"source_kind":   h.Source.Kind.String(),
		"dest_kind":     h.Dest.Kind.String(),
		"partition_key": h.Dest.PartitionKey,
	}
	if h.Source.NodeID != "" {
		out["source_node"] = h.Source.NodeID
	}
	if h.CreatedAtMs != 0 {
		out["created_ms"] = h.CreatedAtMs
	}
	if h.Dedup != nil {
		out["producer"] = h.Dedup.Producer
		out["producer_seq"] = h.Dedup.Sequence
	}
	decodedPayload(out, rec.Envelope.Payload)
	return out
}
