package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authweb",
		Short:         "Email and password authentication pages",
		SilenceUsage:  true,
		SilenceErrors: false,
		Long: `authweb serves the registration, login and password reset pages
and delegates every account operation to the Identity Toolkit API.`,
	}

	cmd.PersistentFlags().String("config", "", "config file path (yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}
