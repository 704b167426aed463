package cmd

import (
	"fmt"

	"github.com/aussiebroadwan/farmportal/internal/auth/app"
	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/service"
	"github.com/aussiebroadwan/farmportal/pkg/cryptox"
	"github.com/spf13/cobra"
)

var newPrincipal struct {
	identifier string
	password   string
	roles      []string
	fullName   string
	phone      string
	language   string
	address    string
	verified   bool
}

var createPrincipalCmd = &cobra.Command{
	Use:   "create-principal",
	Short: "Add a principal to the directory",
	Long: `Create a principal with the given roles. The first role is the primary
role stamped into access tokens.

When --password is omitted a random one is generated and printed once.

Example:
  auth create-principal --identifier officer@example.com --role officer --role farmer`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cryptox.SetPepperPath(cfg.Auth.PepperFile)
		if err := cryptox.LoadPepper(); err != nil {
			return fmt.Errorf("failed to load pepper: %w", err)
		}

		st, err := app.OpenStore(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer st.Close()

		if err := st.ApplyMigrations(); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}

		password := newPrincipal.password
		generated := password == ""
		if generated {
			if password, err = cryptox.GeneratePassword(); err != nil {
				return err
			}
		}

		dir := &service.DirectoryService{Store: st}
		p, err := dir.Create(cmd.Context(), service.NewPrincipal{
			Identifier: newPrincipal.identifier,
			Password:   password,
			Roles:      newPrincipal.roles,
			Profile: domain.Profile{
				FullName: newPrincipal.fullName,
				Phone:    newPrincipal.phone,
				Language: newPrincipal.language,
				Address:  newPrincipal.address,
			},
			Verified:  newPrincipal.verified,
			CreatedBy: "cli",
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "created %s (%s) roles=%v\n", p.Identifier, p.ID, p.Roles.Strings())
		if generated {
			fmt.Fprintf(out, "password: %s\n", password)
		}
		return nil
	},
}

func init() {
	f := createPrincipalCmd.Flags()
	f.StringVar(&newPrincipal.identifier, "identifier", "", "login identifier (email)")
	f.StringVar(&newPrincipal.password, "password", "", "password (generated when empty)")
	f.StringSliceVar(&newPrincipal.roles, "role", nil, "role, repeatable; the first is primary")
	f.StringVar(&newPrincipal.fullName, "name", "", "full name")
	f.StringVar(&newPrincipal.phone, "phone", "", "phone number")
	f.StringVar(&newPrincipal.language, "language", "", "preferred language code")
	f.StringVar(&newPrincipal.address, "address", "", "postal address")
	f.BoolVar(&newPrincipal.verified, "verified", false, "mark the principal as verified")
	_ = createPrincipalCmd.MarkFlagRequired("identifier")
	_ = createPrincipalCmd.MarkFlagRequired("role")
	rootCmd.AddCommand(createPrincipalCmd)
}
