package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/termbridge/termbridge/internal/core/service"
	"github.com/termbridge/termbridge/internal/core/session"
)

var notifyWorkingDir string

var notifyCmd = &cobra.Command{
	Use:   "notify <description>",
	Short: "Dispatch a notification card and open a reply session",
	Long: `Create a reply session and send the notification card to the configured
webhook. Typically invoked by a task hook when a long-running job finishes
or stalls.

Examples:
  termbridge notify "build finished"
  termbridge notify --dir /srv/app "tests stalled, waiting for input"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.Flags().StringVar(&notifyWorkingDir, "dir", "", "Working directory to record (default: current directory)")
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := service.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = svc.Close()
	}()

	workingDir := notifyWorkingDir
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}

	sess, err := svc.DispatchNotification(session.Metadata{
		Channel:     cfg.Channel,
		WorkingDir:  workingDir,
		Description: strings.Join(args, " "),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Notification sent. Session %s (token %s) accepts replies until %s.\n",
		sess.ID, sess.Token, humanize.Time(sess.ExpiresAt))
	return nil
}
