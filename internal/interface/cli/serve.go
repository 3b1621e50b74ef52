package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/termbridge/termbridge/internal/core/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay service",
	Long: `Run the inbound callback listener, the relay queue drain loop, and the
session expiry sweeper until interrupted.

The service binds the events endpoint, verifies callback signatures when a
secret is configured, and forwards authorized commands into the configured
tmux session.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return svc.Start(ctx)
}
