package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Point at a path that doesn't exist; defaults stand.
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":8466" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
	if cfg.MaxCommands != 10 {
		t.Errorf("MaxCommands = %d, want 10", cfg.MaxCommands)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.VerifySecret != "" {
		t.Errorf("VerifySecret should default to empty (verification off)")
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
listen_addr = ":9000"
verify_secret = "topsecret"
webhook_url = "https://open.example.com/hook/abc"
tmux_session = "work"
drain_interval = "2s"
session_ttl = "1h"
max_commands = 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.VerifySecret != "topsecret" {
		t.Errorf("VerifySecret = %q", cfg.VerifySecret)
	}
	if cfg.TmuxSession != "work" {
		t.Errorf("TmuxSession = %q", cfg.TmuxSession)
	}
	if cfg.DrainInterval != 2*time.Second {
		t.Errorf("DrainInterval = %v", cfg.DrainInterval)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.MaxCommands != 5 {
		t.Errorf("MaxCommands = %d", cfg.MaxCommands)
	}
	// Untouched keys keep their defaults.
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`drain_interval = "soon"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted an unparseable duration")
	}
}
