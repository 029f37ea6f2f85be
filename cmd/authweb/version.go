package main

import (
	"github.com/spf13/cobra"
)

// NewVersionCmd prints the build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("authweb %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
