package config

import (
	"os"
	"path/filepath"
)

const appDir = "bifrost"

// DefaultDataDir returns the per-OS data directory used when no data_dir is
// configured. Without a home directory it falls back to ./data.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	switch {
	case isDir("/var/lib"):
		return filepath.Join("/var/lib", appDir)
	case isDir(filepath.Join(homeDir, "Library")):
		return filepath.Join(homeDir, "Library", "Application Support", "Bifrost")
	case isDir(filepath.Join(homeDir, "AppData")):
		return filepath.Join(homeDir, "AppData", "Local", "Bifrost")
	}
	return filepath.Join(homeDir, "."+appDir)
}

// ResolveDataDir returns c.DataDir, or DefaultDataDir when unset.
func (c Config) ResolveDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}

// StoreDir is the Pebble directory under a data dir.
func StoreDir(dataDir string) string { return filepath.Join(dataDir, "store") }

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
