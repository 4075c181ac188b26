package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays BIFROST_* environment variables onto cfg. Unparsable
// values are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("BIFROST_NODE_NAME"); v != "" {
		cfg.NodeName = v
	}
	if v := os.Getenv("BIFROST_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BIFROST_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	envDuration("BIFROST_FSYNC_INTERVAL", &cfg.FsyncInterval)
	if v := os.Getenv("BIFROST_GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("BIFROST_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("BIFROST_DEFAULT_PROVIDER"); v != "" {
		cfg.Bifrost.DefaultProvider = v
	}
	if v := os.Getenv("BIFROST_NUM_LOGS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Bifrost.NumLogs = n
		}
	}
	if v := os.Getenv("BIFROST_APPEND_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bifrost.AppendRetry.MaxAttempts = n
		}
	}
	envDuration("BIFROST_APPEND_RETRY_INITIAL_INTERVAL", &cfg.Bifrost.AppendRetry.InitialInterval)
	if v := os.Getenv("BIFROST_APPEND_RETRY_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Bifrost.AppendRetry.Multiplier = f
		}
	}
	envDuration("BIFROST_APPEND_RETRY_MAX_INTERVAL", &cfg.Bifrost.AppendRetry.MaxInterval)
	envDuration("BIFROST_RECONFIGURE_TIMEOUT", &cfg.Bifrost.ReconfigureTimeout)
	if v := os.Getenv("BIFROST_ENVELOPE_COMPRESS_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Envelope.CompressThreshold = n
		}
	}
	if v := os.Getenv("BIFROST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("BIFROST_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
