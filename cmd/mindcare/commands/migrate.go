package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/mindcare/backend/internal/app"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Apply the schema for DATABASE_DRIVER.

sqlite and mysql use GORM AutoMigrate; postgres applies the embedded SQL
migrations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := app.Migrate(cmd.Context(), cfg.Database, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}
