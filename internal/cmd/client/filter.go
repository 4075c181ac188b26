package client

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/bifrost/internal/bifrost"
)

// recordFilter is a compiled CEL predicate over a decoded log record. The
// zero value matches everything.
type recordFilter struct {
	prog    cel.Program
	enabled bool
}

func newRecordFilter(expr string) (recordFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return recordFilter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("log_id", cel.UintType),
		cel.Variable("lsn", cel.UintType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("source_kind", cel.StringType),
		cel.Variable("source_node", cel.StringType),
		cel.Variable("partition_id", cel.UintType),
		cel.Variable("leader_epoch", cel.UintType),
		cel.Variable("dest_kind", cel.StringType),
		cel.Variable("partition_key", cel.UintType),
		cel.Variable("created_ms", cel.IntType),
		cel.Variable("producer", cel.StringType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return recordFilter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return recordFilter{}, iss.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return recordFilter{}, err
	}
	return recordFilter{prog: prog, enabled: true}, nil
}

// Match evaluates the filter. Evaluation errors and non-bool results count
// as no match.
func (f recordFilter) Match(rec bifrost.LogRecord) bool {
	if !f.enabled {
		return true
	}
	h := rec.Envelope.Header
	var jsonObj any
	_ = json.Unmarshal(rec.Envelope.Payload, &jsonObj)
	producer := ""
	if h.Dedup != nil {
		producer = h.Dedup.Producer
	}
	out, _, err := f.prog.Eval(map[string]any{
		"log_id":        uint64(rec.LogID),
		"lsn":           uint64(rec.LSN),
		"size":          int64(len(rec.Envelope.Payload)),
		"text":          string(rec.Envelope.Payload),
		"json":          jsonObj,
		"source_kind":   h.Source.Kind.String(),
		"source_node":   h.Source.NodeID,
		"partition_id":  h.Source.PartitionID,
		"leader_epoch":  h.Source.LeaderEpoch,
		"dest_kind":     h.Dest.Kind.String(),
		"partition_key": h.Dest.PartitionKey,
		"created_ms":    h.CreatedAtMs,
		"producer":      producer,
		"now_ms":        time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
