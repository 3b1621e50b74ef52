package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/termbridge/termbridge/internal/core/config"
)

var (
	configPath  string
	dbPath      string
	versionInfo string
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "termbridge",
	Short: "Relay chat replies into a live terminal session",
	Long: `termbridge - reply to a chat notification, run the command in your terminal

Dispatches a notification card when a long-running task finishes, then relays
replies to that card back into the tmux session that produced it, behind a
short-lived session token, a security filter, and a durable retry queue.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.config/termbridge/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")
}

// loadConfig resolves config from flags, applying the --db override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}
