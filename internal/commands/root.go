package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollbook-dev/rollbook/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "rollbook",
		Short:   "Roll an accounting file forward into a new fiscal year",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRollCommand())
	rootCmd.AddCommand(newBalancesCommand())
	rootCmd.AddCommand(newAccountsCommand())

	return rootCmd
}
