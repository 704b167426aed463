// Package cmd provides the CLI commands for the auth service.
package cmd

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/farmportal/internal/auth/app"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "auth",
	Short: "Farmer Portal authentication service",
	Long: `Issues and verifies the Farmer Portal's access and refresh tokens.

Without a subcommand the HTTP server is started, same as "auth serve".

Configuration:
  Read from the YAML file given with --config, if any. Every key can be
  overridden from the environment with dots replaced by underscores.
  Example: AUTH_SECRET, DATABASE_DRIVER, RATELIMIT_LOGIN_BURST`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
}

func loadConfig() (app.Config, error) {
	return app.LoadConfig(cfgFile)
}
