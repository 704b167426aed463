package cmd

import (
	"fmt"

	"github.com/aussiebroadwan/farmportal/pkg/cryptox"
	"github.com/spf13/cobra"
)

var genSecretSize int

var genSecretCmd = &cobra.Command{
	Use:   "gen-secret",
	Short: "Generate a random signing secret or master key",
	Long: `Print a random base64url value suitable for auth.secret or the
contents of auth.master_key_file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		secret, err := cryptox.GenerateToken(genSecretSize)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}

func init() {
	genSecretCmd.Flags().IntVar(&genSecretSize, "bytes", cryptox.TokenSize256, "random bytes before encoding")
	rootCmd.AddCommand(genSecretCmd)
}
