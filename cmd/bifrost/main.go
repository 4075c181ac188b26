package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/bifrost/internal/cmd/client"
	serverrun "github.com/rzbill/bifrost/internal/cmd/server"
	cfgpkg "github.com/rzbill/bifrost/internal/config"
	logpkg "github.com/rzbill/bifrost/pkg/log"
)

func main() {
	// CLI logger; server start builds its own from config.
	level := os.Getenv("BIFROST_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:          "bifrost",
		Short:        "Bifrost durable log node",
		Long:         "Bifrost runs a durable, segmented log substrate. This CLI starts a node and inspects logs.",
		SilenceUsage: true,
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start a bifrost node (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	f := serverStartCmd.Flags()
	f.String("config", os.Getenv("BIFROST_CONFIG"), "Config file (JSON or YAML)")
	f.String("node-name", "", "Node name")
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("grpc", "", "gRPC listen address (default :50051)")
	f.String("http", "", "HTTP listen address (default :8080)")
	f.String("fsync", "", "Fsync mode: always|interval|never")
	f.Duration("fsync-interval", 0, "When --fsync=interval, group-commit window")
	f.String("provider", "", "Default provider for new logs: local|memory")
	f.Uint64("num-logs", 0, "Number of logs to bootstrap")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewNodeCommand())
	rootCmd.AddCommand(clientcmd.NewLogCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadServerConfig layers defaults, the config file, BIFROST_* variables and
// explicitly set flags, in that order.
func loadServerConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)

	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("node-name", &cfg.NodeName)
	str("data-dir", &cfg.DataDir)
	str("grpc", &cfg.GRPCAddr)
	str("http", &cfg.HTTPAddr)
	str("fsync", &cfg.Fsync)
	str("provider", &cfg.Bifrost.DefaultProvider)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	if f.Changed("fsync-interval") {
		cfg.FsyncInterval, _ = f.GetDuration("fsync-interval")
	}
	if f.Changed("num-logs") {
		cfg.Bifrost.NumLogs, _ = f.GetUint64("num-logs")
	}
	return cfg, cfg.Validate()
}
