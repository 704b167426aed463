package cmd

import (
	"fmt"

	"github.com/aussiebroadwan/farmportal/internal/auth/app"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Long: `Apply the directory database migrations for the configured driver.

The server applies them on start as well; this is for deployments that
run migrations as a separate step.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := app.OpenStore(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer st.Close()

		if err := st.ApplyMigrations(); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
