package client

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/bifrost/internal/cmd/client/transports"
)

func getTransport(cmd *cobra.Command) (transports.NodeTransport, error) {
	kind, _ := cmd.Flags().GetString("transport")
	addr, _ := cmd.Flags().GetString("addr")
	switch kind {
	case "", "grpc":
		if addr == "" {
			addr = grpcAddrFromEnv()
		}
		return transports.NewGrpcTransport(addr)
	case "http":
		if addr == "" {
			addr = httpURLFromEnv()
		}
		return transports.NewHTTPTransport(addr, nil), nil
	default:
		return nil, fmt.Errorf("invalid --transport %q; use grpc|http", kind)
	}
}

func withTransport(cmd *cobra.Command, fn func(transports.NodeTransport) error) error {
	t, err := getTransport(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()
	return fn(t)
}

// NewNodeCommand constructs the `node` command group.
func NewNodeCommand() *cobra.Command {
	nodeCmd := &cobra.Command{Use: "node", Short: "Query a running node"}
	nodeCmd.PersistentFlags().String("transport", "grpc", "Transport: grpc|http")
	nodeCmd.PersistentFlags().String("addr", "", "Node address (default $BIFROST_GRPC or $BIFROST_HTTP)")
	nodeCmd.AddCommand(newNodeVersionCommand(), newNodeStatusCommand(), newNodeWatchCommand())
	return nodeCmd
}

func newNodeVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the metadata version the node has observed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTransport(cmd, func(t transports.NodeTransport) error {
				v, err := t.MetadataVersion(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "metadata_version: %d\n", v)
				return nil
			})
		},
	}
}

func newNodeStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the node identity and status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			requireAlive, _ := cmd.Flags().GetBool("require-alive")
			return withTransport(cmd, func(t transports.NodeTransport) error {
				id, err := t.Ident(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if id.NodeName != "" {
					fmt.Fprintf(out, "node: %s\n", id.NodeName)
				}
				fmt.Fprintf(out, "status: %s\n", id.Status)
				fmt.Fprintf(out, "metadata_version: %d\n", id.MetadataVersion)
				if requireAlive && id.Status != "alive" {
					return fmt.Errorf("node is %s", id.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("require-alive", false, "Exit non-zero unless the node is alive")
	return cmd
}

func newNodeWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream metadata version changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			seen := 0
			return withTransport(cmd, func(t transports.NodeTransport) error {
				err := t.WatchMetadataVersion(ctx, func(v uint64) error {
					fmt.Fprintf(cmd.OutOrStdout(), "metadata_version: %d\n", v)
					seen++
					if count > 0 && seen >= count {
						cancel()
					}
					return nil
				})
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().Int("count", 0, "Stop after this many versions (0 = until interrupted)")
	return cmd
}
