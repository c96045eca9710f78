package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rollbook-dev/rollbook/internal/book"
)

func newBalancesCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "balances <file>",
		Short: "Print closing balances of balance-sheet accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runBalances(path, all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include zero balances and income/expense accounts")

	return cmd
}

func runBalances(path string, all bool) error {
	b, err := book.Open(path)
	if err != nil {
		return err
	}

	balances := b.Balances()
	for _, a := range b.Accounts() {
		if a.Placeholder {
			continue
		}
		if !all && !a.Type.BalanceSheet() {
			continue
		}
		balance := balances[a.GUID]
		if !all && balance.IsZero() {
			continue
		}
		commodity := ""
		if a.Commodity != nil {
			commodity = a.Commodity.ID
		}
		fmt.Printf("%-50s %12s %s\n", a.FullName(), balance.StringFixed(2), commodity)
	}
	return nil
}
