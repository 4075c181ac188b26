package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rzbill/bifrost/internal/bifrost"
	cfgpkg "github.com/rzbill/bifrost/internal/config"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/node"
)

// NewLogCommand constructs the `log` command group. Its subcommands open
// the node's data directory directly, so the server must be stopped.
func NewLogCommand() *cobra.Command {
	logCmd := &cobra.Command{Use: "log", Short: "Offline log operations on a stopped node's data directory"}
	logCmd.PersistentFlags().String("config", "", "Config file (JSON or YAML)")
	logCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")
	logCmd.PersistentFlags().Uint64("log", 0, "Log id")
	logCmd.AddCommand(newLogDumpCommand(), newLogTrimCommand(), newLogReconfigureCommand())
	return logCmd
}

func withOfflineNode(cmd *cobra.Command, fn func(ctx context.Context, n *node.Node) error) error {
	path, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return err
	}
	cfgpkg.FromEnv(&cfg)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	n, err := node.Open(ctx, node.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("open data dir: %w", err)
	}
	defer n.Close()
	return fn(ctx, n)
}

func logIDFlag(cmd *cobra.Command) logs.LogID {
	id, _ := cmd.Flags().GetUint64("log")
	return logs.LogID(id)
}

func newLogDumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print records as JSON lines, optionally filtered by a CEL expression",
		Example: `  bifrost log dump --data-dir ./data --log 3 --from 100 --limit 10
  bifrost log dump --log 0 --filter 'source_kind == "ingress" && size > 128'
  bifrost log dump --log 0 --filter 'json.type == "order.created"'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetUint64("from")
			until, _ := cmd.Flags().GetUint64("until")
			limit, _ := cmd.Flags().GetInt("limit")
			expr, _ := cmd.Flags().GetString("filter")
			filter, err := newRecordFilter(expr)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			logID := logIDFlag(cmd)
			return withOfflineNode(cmd, func(ctx context.Context, n *node.Node) error {
				if _, ok := n.Metadata().Get().Chain(logID); !ok {
					return fmt.Errorf("unknown log %s", logID)
				}
				r := n.Bifrost().CreateReader(logID, bifrost.ReadOptions{From: logs.LSN(from), Until: logs.LSN(until)})
				defer r.Close()
				enc := json.NewEncoder(cmd.OutOrStdout())
				printed := 0
				for limit <= 0 || printed < limit {
					rec, err := r.Next(ctx)
					if errors.Is(err, io.EOF) {
						return nil
					}
					if err != nil {
						return err
					}
					if !filter.Match(rec) {
						continue
					}
					if err := enc.Encode(recordJSON(rec)); err != nil {
						return err
					}
					printed++
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint64("from", 0, "First LSN (0 = trim point)")
	cmd.Flags().Uint64("until", 0, "Exclusive upper LSN (0 = tail)")
	cmd.Flags().Int("limit", 0, "Maximum records to print (0 = all)")
	cmd.Flags().String("filter", "", "CEL predicate over log_id, lsn, size, text, json, source_kind, source_node, partition_id, leader_epoch, dest_kind, partition_key, created_ms, producer, now_ms")
	return cmd
}

func newLogTrimCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trim",
		Short: "Trim every record below --to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			to, _ := cmd.Flags().GetUint64("to")
			if to == 0 {
				return errors.New("--to is required")
			}
			logID := logIDFlag(cmd)
			return withOfflineNode(cmd, func(ctx context.Context, n *node.Node) error {
				if err := n.Bifrost().Trim(ctx, logID, logs.LSN(to)); err != nil {
					return err
				}
				tp, err := n.Bifrost().TrimPoint(ctx, logID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "log %s trim_point: %d\n", logID, uint64(tp))
				return nil
			})
		},
	}
	cmd.Flags().Uint64("to", 0, "Records with LSN below this are removed")
	return cmd
}

func newLogReconfigureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconfigure",
		Short: "Seal the open segment and continue the log on a new one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kindName, _ := cmd.Flags().GetString("kind")
			logID := logIDFlag(cmd)
			return withOfflineNode(cmd, func(ctx context.Context, n *node.Node) error {
				kind := n.Provider().DefaultKind()
				if kindName != "" {
					k, err := logs.ParseProviderKind(kindName)
					if err != nil {
						return err
					}
					kind = k
				}
				if kind == logs.ProviderMemory {
					return errors.New("memory segments do not outlive this command; use a durable kind")
				}
				seg, err := n.Bifrost().Reconfigure(ctx, logID, kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "log %s now writes to %s (metadata %s)\n", logID, seg, n.MetadataVersion())
				return nil
			})
		},
	}
	cmd.Flags().String("kind", "", "Provider kind of the new segment (default: configured provider)")
	return cmd
}
