package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/farmportal/pkg/cryptox"
	"github.com/spf13/cobra"
)

var hashPepperFile string

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the Argon2id hash of a password",
	Long: `Hash a password the way the directory stores it.

The hash is peppered, so --pepper-file must name the pepper the server
uses. Without an argument the password is read from the first line of
stdin, which keeps it out of shell history:

  echo -n "$PASSWORD" | auth hash-password`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return errors.New("password must not be empty")
		}

		cryptox.SetPepperPath(hashPepperFile)
		if err := cryptox.LoadPepper(); err != nil {
			return fmt.Errorf("failed to load pepper: %w", err)
		}

		hash, err := cryptox.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	hashPasswordCmd.Flags().StringVar(&hashPepperFile, "pepper-file", "pepper", "pepper file shared with the server")
	rootCmd.AddCommand(hashPasswordCmd)
}
