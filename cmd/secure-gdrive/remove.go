package main

import (
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return runRemove(c, args[0])
	},
}

func runRemove(c *cobra.Command, id string) error {
	manager, err := createManager(c)
	if err != nil {
		return report(c.OutOrStdout(), err, id)
	}
	defer manager.Close()

	return report(c.OutOrStdout(), manager.RemoveFile(c.Context(), id), id)
}
