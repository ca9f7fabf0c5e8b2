package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/logandonley/secure-gdrive/pkg/config"
	"github.com/spf13/cobra"
)

const configHeader = `# secure-gdrive configuration
#
# Place the OAuth client credentials downloaded from the Google Cloud console
# at auth.credentials_file, then run "secure-gdrive auth".
#
# remote.backend selects where archives are stored: drive, s3 or sftp.
# archive.exclude takes doublestar globs relative to the zipped folder,
# for example "**/node_modules/**" or "**/.git".

`

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration directory and a default config file",
		Long: `Create ~/secure-gdrive and write a default config.yaml into it.
An existing config file is kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			path, err := WriteDefaultConfig(dir, force)
			if err != nil {
				return err
			}

			cfg := config.Default()
			fmt.Fprintf(cmd.OutOrStdout(), "Initialization complete.\nConfig file created at: %s\n", path)
			if _, err := os.Stat(cfg.Auth.CredentialsFile); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "Next, save your OAuth client credentials to %s\n", cfg.Auth.CredentialsFile)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

// WriteDefaultConfig creates dir and writes config.yaml with every default
// filled in, returning the file path.
func WriteDefaultConfig(dir string, force bool) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}

	cfg := config.Default()
	cfg.Auth.CredentialsFile = filepath.Join(dir, "credentials.json")
	cfg.Auth.TokenFile = filepath.Join(dir, "token.yaml")
	// The temp root is resolved at run time
	cfg.Workspace.Root = ""

	data, err := cfg.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to encode default config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	return path, nil
}
