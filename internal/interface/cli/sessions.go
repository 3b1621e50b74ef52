package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/termbridge/termbridge/internal/core/db"
	"github.com/termbridge/termbridge/internal/core/models"
	"github.com/termbridge/termbridge/internal/core/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect reply sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reply sessions",
	Long: `List all persisted reply sessions in reverse chronological order.

Shows tokens, working directories, usage counters, and expiry times.`,
	RunE: runSessionsList,
}

var sessionsCopyCmd = &cobra.Command{
	Use:   "copy <token>",
	Short: "Copy a session id to the clipboard",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsCopy,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsCopyCmd)
}

func openStore() (*session.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := session.NewStore(database, cfg.SessionTTL, cfg.MaxCommands)
	return store, func() { _ = database.Close() }, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	sessions, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions. Run 'termbridge notify' to dispatch one.")
		return nil
	}

	now := time.Now()
	fmt.Printf("Showing %d session(s)\n\n", len(sessions))
	for i, s := range sessions {
		state := s.Status
		if s.Expired(now) {
			state = models.SessionExpired
		} else if s.Exhausted() {
			state = "exhausted"
		}
		fmt.Printf("[%d] %s  #%s  (%s)\n", i+1, s.ID, s.Token, state)
		if s.Description != "" {
			fmt.Printf("    %s\n", s.Description)
		}
		fmt.Printf("    %s  commands %d/%d  created %s, expires %s\n",
			s.WorkingDir, s.CommandCount, s.MaxCommands,
			humanize.Time(s.CreatedAt), humanize.Time(s.ExpiresAt))
		fmt.Println()
	}
	return nil
}

func runSessionsCopy(cmd *cobra.Command, args []string) error {
	store, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	token := strings.ToUpper(args[0])
	id, err := store.ResolveToken(token)
	if err != nil {
		return fmt.Errorf("no session with token %s", token)
	}

	if err := clipboard.WriteAll(id); err != nil {
		// Clipboard may be unavailable over SSH; still show the id.
		fmt.Printf("Session ID: %s\n", id)
		return nil
	}
	fmt.Printf("Copied session id %s to clipboard.\n", id)
	return nil
}
