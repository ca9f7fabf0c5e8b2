package main

import (
	"github.com/logandonley/secure-gdrive/pkg/cmd"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch ID DESTINATION PASSWORD",
	Short: "Download and decrypt a file",
	Long: `Download the file with ID and decrypt it into DESTINATION with PASSWORD.
Nothing is written to DESTINATION when the password is wrong.`,
	Args: cobra.ExactArgs(3),
	RunE: func(c *cobra.Command, args []string) error {
		return runFetch(c, args[0], args[1], args[2])
	},
}

func runFetch(c *cobra.Command, id, destination, password string) error {
	password, err := cmd.ResolvePassword(c.Context(), c.OutOrStdout(), password)
	if err != nil {
		return err
	}

	manager, err := createManager(c)
	if err != nil {
		return report(c.OutOrStdout(), err, id)
	}
	defer manager.Close()

	return report(c.OutOrStdout(), manager.Fetch(c.Context(), id, destination, password), id)
}
