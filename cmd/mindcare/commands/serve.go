package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API together with the scheduled jobs (therapist directory
refresh, idle session sweep) and the Telegram bot when TELEGRAM_BOT_TOKEN is set.

Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd)
		},
	}
}

func serve(ctx context.Context, cmd *cobra.Command) error {
	a, err := loadApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}
