package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds everything the relay needs at runtime.
type Config struct {
	ListenAddr   string // inbound callback listener
	EventsPath   string // webhook path the channel POSTs to
	VerifySecret string // empty disables signature verification
	WebhookURL   string // outbound notification webhook
	Channel      string // origin channel tag
	TmuxSession  string // target tmux session for the executor
	DBPath       string

	DrainInterval  time.Duration
	SweepInterval  time.Duration
	SessionTTL     time.Duration
	CommandTimeout time.Duration
	MaxCommands    int
	MaxRetries     int
}

type tomlConfig struct {
	ListenAddr   string `toml:"listen_addr"`
	EventsPath   string `toml:"events_path"`
	VerifySecret string `toml:"verify_secret"`
	WebhookURL   string `toml:"webhook_url"`
	Channel      string `toml:"channel"`
	TmuxSession  string `toml:"tmux_session"`
	DBPath       string `toml:"db_path"`

	DrainInterval  string `toml:"drain_interval"`
	SweepInterval  string `toml:"sweep_interval"`
	SessionTTL     string `toml:"session_ttl"`
	CommandTimeout string `toml:"command_timeout"`
	MaxCommands    int    `toml:"max_commands"`
	MaxRetries     int    `toml:"max_retries"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		ListenAddr:     ":8466",
		EventsPath:     "/webhook/events",
		Channel:        "feishu",
		TmuxSession:    "main",
		DBPath:         filepath.Join(home, ".config", "termbridge", "termbridge.db"),
		DrainInterval:  5 * time.Second,
		SweepInterval:  10 * time.Minute,
		SessionTTL:     24 * time.Hour,
		CommandTimeout: 10 * time.Second,
		MaxCommands:    10,
		MaxRetries:     3,
	}
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "termbridge", "config.toml")
}

// Load reads config from path, overlaying defaults. A missing file is not an
// error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}

	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if tc.ListenAddr != "" {
		cfg.ListenAddr = tc.ListenAddr
	}
	if tc.EventsPath != "" {
		cfg.EventsPath = tc.EventsPath
	}
	if tc.VerifySecret != "" {
		cfg.VerifySecret = tc.VerifySecret
	}
	if tc.WebhookURL != "" {
		cfg.WebhookURL = tc.WebhookURL
	}
	if tc.Channel != "" {
		cfg.Channel = tc.Channel
	}
	if tc.TmuxSession != "" {
		cfg.TmuxSession = tc.TmuxSession
	}
	if tc.DBPath != "" {
		cfg.DBPath = tc.DBPath
	}
	if tc.MaxCommands > 0 {
		cfg.MaxCommands = tc.MaxCommands
	}
	if tc.MaxRetries > 0 {
		cfg.MaxRetries = tc.MaxRetries
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{tc.DrainInterval, &cfg.DrainInterval},
		{tc.SweepInterval, &cfg.SweepInterval},
		{tc.SessionTTL, &cfg.SessionTTL},
		{tc.CommandTimeout, &cfg.CommandTimeout},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q in config: %w", d.raw, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}
