package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/mindcare/backend/internal/app"
	"github.com/zhouzirui/mindcare/backend/internal/config"
)

// NewRootCmd builds the mindcare command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mindcare",
		Short: "Mental-health companion chat backend",
		Long: `MindCare runs the companion chat API and its maintenance tasks.

Configuration is read from the environment and an optional .env file.

Examples:
  mindcare serve
  mindcare migrate
  mindcare chat --user asha "I feel so lonely"
  mindcare export --user asha --kind mood --format csv`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		NewServeCmd(),
		NewMigrateCmd(),
		NewTherapistsCmd(),
		NewExportCmd(),
		NewChatCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads .env and the environment and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded, using system environment only", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// loadApp wires the full application. Callers must Close it.
func loadApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}
