package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rzbill/bifrost/internal/logs"
	pebblestore "github.com/rzbill/bifrost/internal/storage/pebble"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	NodeName string `mapstructure:"node_name"`
	DataDir  string `mapstructure:"data_dir"`
	Fsync    string `mapstructure:"fsync"`
	// FsyncInterval is the group-commit window when Fsync is "interval".
	FsyncInterval time.Duration  `mapstructure:"fsync_interval"`
	GRPCAddr      string         `mapstructure:"grpc_addr"`
	HTTPAddr      string         `mapstructure:"http_addr"`
	Bifrost       BifrostConfig  `mapstructure:"bifrost"`
	Envelope      EnvelopeConfig `mapstructure:"envelope"`
	Log           LogConfig      `mapstructure:"log"`
}

// BifrostConfig tunes the log substrate.
type BifrostConfig struct {
	DefaultProvider    string        `mapstructure:"default_provider"`
	NumLogs            uint64        `mapstructure:"num_logs"`
	AppendRetry        RetryConfig   `mapstructure:"append_retry"`
	ReconfigureTimeout time.Duration `mapstructure:"reconfigure_timeout"`
}

// RetryConfig bounds retries of retryable append failures.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// EnvelopeConfig tunes the record codec.
type EnvelopeConfig struct {
	CompressThreshold int `mapstructure:"compress_threshold"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		NodeName:      "bifrost-0",
		Fsync:         "always",
		FsyncInterval: 5 * time.Millisecond,
		GRPCAddr:      ":50051",
		HTTPAddr:      ":8080",
		Bifrost: BifrostConfig{
			DefaultProvider: string(logs.ProviderLocal),
			NumLogs:         8,
			AppendRetry: RetryConfig{
				MaxAttempts:     5,
				InitialInterval: 10 * time.Millisecond,
				Multiplier:      2,
				MaxInterval:     time.Second,
			},
			ReconfigureTimeout: 5 * time.Second,
		},
		Envelope: EnvelopeConfig{CompressThreshold: 4 << 10},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) on top
// of Default. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		v.SetConfigType("json")
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	default:
		return Config{}, fmt.Errorf("config: unsupported file type %q", ext)
	}
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.NodeName == "" {
		return errors.New("config: node_name must be set")
	}
	if _, err := pebblestore.ParseFsyncMode(c.Fsync); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	kind, err := logs.ParseProviderKind(c.Bifrost.DefaultProvider)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if kind == logs.ProviderMemory {
		return errors.New("config: bifrost.default_provider memory cannot back persisted log metadata")
	}
	if c.Bifrost.NumLogs == 0 {
		return errors.New("config: bifrost.num_logs must be positive")
	}
	r := c.Bifrost.AppendRetry
	if r.MaxAttempts < 1 {
		return errors.New("config: bifrost.append_retry.max_attempts must be at least 1")
	}
	if r.InitialInterval < 0 || r.MaxInterval < 0 {
		return errors.New("config: bifrost.append_retry intervals must not be negative")
	}
	if r.Multiplier < 1 {
		return errors.New("config: bifrost.append_retry.multiplier must be at least 1")
	}
	if c.Bifrost.ReconfigureTimeout <= 0 {
		return errors.New("config: bifrost.reconfigure_timeout must be positive")
	}
	return nil
}

// FsyncMode parses the configured fsync policy.
func (c Config) FsyncMode() (pebblestore.FsyncMode, error) {
	return pebblestore.ParseFsyncMode(c.Fsync)
}

// ProviderKind parses the configured default provider.
func (c Config) ProviderKind() (logs.ProviderKind, error) {
	return logs.ParseProviderKind(c.Bifrost.DefaultProvider)
}
