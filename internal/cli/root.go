// Package cli holds the signal-executor commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "signal-executor",
		Short: "Multi-account futures signal executor",
		Long: `signal-executor receives trading signals over a webhook and places bracketed
futures orders on every configured account, trailing protective stops once
positions are in profit and halting an account whose equity falls below its floor.

Configuration comes from the environment (optionally a .env file) and a YAML
account file.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCmd(),
		newAccountsCmd(),
		newTokenCmd(),
		newHashPassphraseCmd(),
		newEncryptSecretCmd(),
		newKeygenCmd(),
		newJournalCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "signal-executor version %s\n", version)
		},
	}
}
