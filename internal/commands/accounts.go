package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rollbook-dev/rollbook/internal/book"
)

func newAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts <file>",
		Short: "Print the account tree of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runAccounts(path)
		},
	}
	return cmd
}

func runAccounts(path string) error {
	b, err := book.Open(path)
	if err != nil {
		return err
	}

	for _, a := range b.Accounts() {
		depth := strings.Count(a.FullName(), ":")
		indent := strings.Repeat("  ", depth)
		commodity := ""
		if a.Commodity != nil {
			commodity = a.Commodity.ID
		}
		marker := ""
		if a.Placeholder {
			marker = " [placeholder]"
		}
		fmt.Printf("%s%s (%s %s)%s\n", indent, a.Name, a.Type, commodity, marker)
	}
	return nil
}
