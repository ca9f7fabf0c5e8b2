package main

import (
	"errors"

	"github.com/logandonley/secure-gdrive/pkg/archive"
	"github.com/logandonley/secure-gdrive/pkg/cmd"
	"github.com/logandonley/secure-gdrive/pkg/storage"
	"github.com/spf13/cobra"
)

var zipCmd = &cobra.Command{
	Use:   "zip SOURCE NAME PASSWORD",
	Short: "Zip, encrypt and upload a file or folder",
	Long: `Zip SOURCE, encrypt it with PASSWORD and upload it as NAME.
A folder is zipped first and the resulting zip is encrypted, which hides the
names and structure of its files. The new file ID is printed on success.`,
	Args: cobra.ExactArgs(3),
	RunE: func(c *cobra.Command, args []string) error {
		return runZip(c, args[0], args[1], args[2])
	},
}

func runZip(c *cobra.Command, source, name, password string) error {
	// Fail on a bad source before authorizing or prompting
	if _, err := archive.CheckSource(source); err != nil {
		return report(c.OutOrStdout(), err, source)
	}

	password, err := cmd.ResolvePassword(c.Context(), c.OutOrStdout(), password)
	if err != nil {
		return err
	}

	manager, err := createManager(c)
	if err != nil {
		return report(c.OutOrStdout(), err, source)
	}
	defer manager.Close()

	_, err = manager.ZipUpload(c.Context(), source, name, password)
	if errors.Is(err, storage.ErrExists) {
		return report(c.OutOrStdout(), err, name)
	}
	return report(c.OutOrStdout(), err, source)
}
