package node

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rzbill/bifrost/internal/bifrost"
	cfgpkg "github.com/rzbill/bifrost/internal/config"
	"github.com/rzbill/bifrost/internal/envelope"
	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/loglet/local"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/metadata"
	"github.com/rzbill/bifrost/internal/metrics"
	"github.com/rzbill/bifrost/internal/provider"
	pebblestore "github.com/rzbill/bifrost/internal/storage/pebble"
	"github.com/rzbill/bifrost/pkg/log"
)

// ErrNotAlive is returned by CheckHealth while the node is not serving.
var ErrNotAlive = errors.New("node: not alive")

// Options for building a Node.
type Options struct {
	Config cfgpkg.Config
	// DataDir overrides Config's data dir. The Pebble store lives in its
	// "store" subdirectory.
	DataDir string
	Logger  log.Logger
	// Metrics is optional; Open creates a registry when nil.
	Metrics *metrics.Metrics
}

// Node wires storage, metadata, provider and the bifrost handle for a
// single process.
type Node struct {
	name   string
	cfg    cfgpkg.Config
	logger log.Logger
	status statusCell

	db       *pebblestore.DB
	codec    *envelope.Codec
	store    *metadata.Store
	provider *provider.Provider
	bifrost  *bifrost.Bifrost
	metrics  *metrics.Metrics
}

// Open builds the node and bootstraps the configured logs. The node reports
// starting_up until Start.
func Open(ctx context.Context, opts Options) (*Node, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	n := &Node{name: cfg.NodeName, cfg: cfg, logger: logger.WithComponent("node"), metrics: opts.Metrics}
	n.status.store(StatusStartingUp)
	if n.metrics == nil {
		n.metrics = metrics.New()
	}

	fsync, err := cfg.FsyncMode()
	if err != nil {
		return nil, err
	}
	kind, err := cfg.ProviderKind()
	if err != nil {
		return nil, err
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = cfg.ResolveDataDir()
	}
	storeDir := cfgpkg.StoreDir(dataDir)
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("node: data dir: %w", err)
	}

	ok := false
	defer func() {
		if !ok {
			_ = n.teardown()
		}
	}()

	n.db, err = pebblestore.Open(pebblestore.Options{
		DataDir:       storeDir,
		Fsync:         fsync,
		FsyncInterval: cfg.FsyncInterval,
		Metrics:       n.metrics,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("node: open store: %w", err)
	}
	n.store, err = metadata.NewStore(ctx, metadata.Options{
		Backend: metadata.NewPebbleBackend(n.db),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	// Chains are persisted, so only durable loglets may back them: a memory
	// segment would restart at its base and hand out LSNs again.
	factories := []loglet.Factory{local.NewFactory(n.db, logger)}
	n.provider, err = provider.New(n.store, kind, factories, provider.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	n.codec, err = envelope.NewCodec(envelope.Options{CompressThreshold: cfg.Envelope.CompressThreshold})
	if err != nil {
		return nil, err
	}
	retry := cfg.Bifrost.AppendRetry
	n.bifrost, err = bifrost.New(n.store, n.provider,
		bifrost.WithCodec(n.codec),
		bifrost.WithRetryPolicy(bifrost.RetryPolicy{
			MaxAttempts:     retry.MaxAttempts,
			InitialInterval: retry.InitialInterval,
			Multiplier:      retry.Multiplier,
			MaxInterval:     retry.MaxInterval,
		}),
		bifrost.WithReconfigureTimeout(cfg.Bifrost.ReconfigureTimeout),
		bifrost.WithLogger(logger),
		bifrost.WithMetrics(n.metrics),
	)
	if err != nil {
		return nil, err
	}
	if err := n.provider.Bootstrap(ctx, cfg.Bifrost.NumLogs); err != nil {
		return nil, fmt.Errorf("node: bootstrap logs: %w", err)
	}
	if err := n.metrics.TrackMetadataVersion(n.store.Version); err != nil {
		return nil, err
	}
	if err := n.metrics.TrackDiskUsage(n.db.DiskUsage); err != nil {
		return nil, err
	}
	ok = true
	n.logger.Info("node opened",
		log.Str("name", n.name),
		log.Str("store", storeDir),
		log.Str("provider", string(kind)),
		log.Uint64("logs", cfg.Bifrost.NumLogs),
		log.Uint64("metadata_version", uint64(n.store.Version())),
	)
	return n, nil
}

// Start marks the node alive.
func (n *Node) Start() {
	if n.status.advance(StatusStartingUp, StatusAlive) {
		n.logger.Info("node alive", log.Str("name", n.name))
	}
}

// Close marks the node shutting down and releases everything in reverse
// order of construction.
func (n *Node) Close() error {
	prev := n.status.load()
	if prev == StatusShuttingDown {
		return nil
	}
	n.status.store(StatusShuttingDown)
	n.logger.Info("node shutting down", log.Str("name", n.name))
	return n.teardown()
}

func (n *Node) teardown() error {
	var errs []error
	if n.bifrost != nil {
		errs = append(errs, n.bifrost.Close())
	}
	if n.codec != nil {
		n.codec.Close()
	}
	if n.provider != nil {
		errs = append(errs, n.provider.Close())
	}
	if n.store != nil {
		errs = append(errs, n.store.Close())
	}
	if n.db != nil {
		errs = append(errs, n.db.Close())
	}
	return errors.Join(errs...)
}

// CheckHealth reports ErrNotAlive unless the node is alive and its store
// answers reads.
func (n *Node) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s := n.status.load(); s != StatusAlive {
		return fmt.Errorf("%w: %s", ErrNotAlive, s)
	}
	it, err := n.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

func (n *Node) Name() string                 { return n.name }
func (n *Node) Status() Status               { return n.status.load() }
func (n *Node) Config() cfgpkg.Config        { return n.cfg }
func (n *Node) Bifrost() *bifrost.Bifrost    { return n.bifrost }
func (n *Node) Metadata() *metadata.Store    { return n.store }
func (n *Node) Provider() *provider.Provider { return n.provider }
func (n *Node) Metrics() *metrics.Metrics    { return n.metrics }
func (n *Node) DB() *pebblestore.DB          { return n.db }

// MetadataVersion is the latest metadata version this node has observed.
func (n *Node) MetadataVersion() logs.Version { return n.store.Version() }
