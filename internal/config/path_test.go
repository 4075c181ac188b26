package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/bifrost" {
		t.Fatalf("expected /custom/data/bifrost, got %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	t.Setenv("HOME", "")
	// UserHomeDir reads $HOME on unix; other platforms may still resolve one.
	got := DefaultDataDir()
	if got == "" {
		t.Fatal("expected non-empty result even when HOME is not set")
	}
	if _, err := os.UserHomeDir(); err != nil && got != "./data" {
		t.Fatalf("expected fallback to ./data, got %s", got)
	}
}

func TestDefaultDataDirShape(t *testing.T) {
	got := DefaultDataDir()
	if !filepath.IsAbs(got) && !strings.HasPrefix(got, "./") {
		t.Fatalf("expected absolute path or ./ prefix, got %s", got)
	}
	if got != "./data" && !strings.HasSuffix(strings.ToLower(got), "bifrost") {
		t.Fatalf("expected a bifrost directory, got %s", got)
	}
	if again := DefaultDataDir(); again != got {
		t.Fatalf("DefaultDataDir should be stable, got %s and %s", got, again)
	}
}

func TestResolveDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/srv/bifrost"
	if got := cfg.ResolveDataDir(); got != "/srv/bifrost" {
		t.Fatalf("explicit dir: %s", got)
	}
	cfg.DataDir = ""
	if got := cfg.ResolveDataDir(); got != DefaultDataDir() {
		t.Fatalf("fallback dir: %s", got)
	}
	if got := StoreDir("/srv/bifrost"); got != filepath.Join("/srv/bifrost", "store") {
		t.Fatalf("store dir: %s", got)
	}
}

func TestIsDir(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"existing directory", ".", true},
		{"non-existent path", "/non/existent/path/that/does/not/exist", false},
		{"file instead of directory", os.Args[0], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDir(tt.path); got != tt.expected {
				t.Errorf("isDir(%s) = %v, expected %v", tt.path, got, tt.expected)
			}
		})
	}
}
