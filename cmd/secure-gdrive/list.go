package main

import (
	"github.com/spf13/cobra"
)

var listLong bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List accessible files",
	Long: `List every file the application has uploaded as "name (id)".
With --long the size and age of each file are printed as well.`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		return runList(c, listLong)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listLong, "long", false, "also print size and age")
}

func runList(c *cobra.Command, long bool) error {
	manager, err := createManager(c)
	if err != nil {
		return report(c.OutOrStdout(), err, "")
	}
	defer manager.Close()

	return report(c.OutOrStdout(), manager.ListFiles(c.Context(), long), "")
}
