package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/termbridge/termbridge/internal/core/db"
	"github.com/termbridge/termbridge/internal/core/models"
	"github.com/termbridge/termbridge/internal/core/relay"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the relay queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and recent items",
	RunE:  runQueueStatus,
}

var queueCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge completed items older than the audit window",
	RunE:  runQueueCleanup,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueCleanupCmd)
}

func openDB() (*db.DB, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, func() { _ = database.Close() }, nil
}

func runQueueStatus(cmd *cobra.Command, args []string) error {
	database, cleanup, err := openDB()
	if err != nil {
		return err
	}
	defer cleanup()

	counts, err := database.CountCommandsByStatus()
	if err != nil {
		return fmt.Errorf("failed to read queue status: %w", err)
	}

	fmt.Printf("queued: %d  executing: %d  completed: %d  failed: %d\n\n",
		counts[models.CommandQueued], counts[models.CommandExecuting],
		counts[models.CommandCompleted], counts[models.CommandFailed])

	items, err := database.ListCommands()
	if err != nil {
		return fmt.Errorf("failed to list queue items: %w", err)
	}
	if len(items) > 10 {
		items = items[:10]
	}
	for _, c := range items {
		line := fmt.Sprintf("%s  [%s]  %s", c.ID, c.Status, c.Text)
		if c.Status == models.CommandFailed && c.LastError != "" {
			line += "  (" + c.LastError + ")"
		}
		fmt.Println(line)
		fmt.Printf("    session %s, queued %s, retries %d/%d\n",
			c.SessionID, humanize.Time(c.QueuedAt), c.Retries, c.MaxRetries)
	}
	return nil
}

func runQueueCleanup(cmd *cobra.Command, args []string) error {
	database, cleanup, err := openDB()
	if err != nil {
		return err
	}
	defer cleanup()

	// Same audit window the service applies on its cleanup ticker.
	n, err := database.DeleteCompletedBefore(time.Now().Add(-relay.AuditWindow))
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Printf("Purged %d completed item(s).\n", n)
	return nil
}
