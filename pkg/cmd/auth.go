package cmd

import (
	"fmt"

	"github.com/logandonley/secure-gdrive/pkg/backup"
	"github.com/spf13/cobra"
)

// AuthCmd returns the auth command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Drive",
		Long: `Run the Google authorization flow now and store the resulting token.
Open the printed URL, approve access and paste the code shown by Google.
The application can only access files it created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}

			authorizer, err := backup.NewAuthorizer(cfg, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			if _, err := authorizer.Authorize(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.Auth.TokenFile)
			return nil
		},
	}

	return cmd
}
