package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rollbook-dev/rollbook/internal/audit"
	"github.com/rollbook-dev/rollbook/internal/config"
	"github.com/rollbook-dev/rollbook/internal/gitops"
	"github.com/rollbook-dev/rollbook/internal/roll"
)

func newRollCommand() *cobra.Command {
	var year int
	var openingDate string
	var output string
	var configPath string

	cmd := &cobra.Command{
		Use:   "roll <source-file>",
		Short: "Create a new year's book with opening balances carried forward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runRoll(source, year, openingDate, output, configPath)
		},
	}

	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "target fiscal year")
	cmd.Flags().StringVar(&openingDate, "opening-date", "", "opening transaction date (YYYY-MM-DD, default: Jan 1 of target year)")
	cmd.Flags().StringVar(&output, "output", "", "output file (default: source path with year substituted)")
	cmd.Flags().StringVar(&configPath, "config", "rollbook.yaml", "config file")

	return cmd
}

func runRoll(source string, year int, openingDate, output, configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	opts := roll.Options{
		Source: source,
		Output: output,
		Year:   year,
		Config: cfg,
	}
	if openingDate != "" {
		date, err := time.Parse("2006-01-02", openingDate)
		if err != nil {
			return fmt.Errorf("parsing opening date: %w", err)
		}
		opts.OpeningDate = date
	}

	result, err := roll.Run(opts)
	if err != nil {
		return err
	}

	for _, e := range result.Entries {
		fmt.Printf("  %-50s %12s %s\n", e.Account, e.Amount.StringFixed(2), e.Commodity)
	}

	outDir := filepath.Dir(result.Output)
	now := time.Now()
	entries := make([]audit.Entry, 0, len(result.Entries)+1)
	entries = append(entries, audit.Entry{
		Timestamp: now,
		Action:    "roll",
		Source:    source,
		Output:    result.Output,
	})
	for _, e := range result.Entries {
		entries = append(entries, audit.Entry{
			Timestamp: now,
			Action:    "opening-entry",
			Source:    source,
			Output:    result.Output,
			Account:   e.Account,
			Amount:    e.Amount.StringFixed(2) + " " + e.Commodity,
		})
	}
	if err := audit.Append(outDir, entries); err != nil {
		return fmt.Errorf("writing roll log: %w", err)
	}

	if cfg.Git.AutoCommit && gitops.IsRepo(outDir) {
		paths := []string{result.Output, audit.Path(outDir)}
		message := fmt.Sprintf("roll: Open fiscal year %d from %s", year, filepath.Base(source))
		hash, err := gitops.CommitPaths(outDir, paths, message, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
		if err != nil {
			return fmt.Errorf("committing new book: %w", err)
		}
		fmt.Printf("Committed %s\n", hash)
	}

	fmt.Printf("Created %s (%d opening entries)\n", result.Output, len(result.Entries))
	return nil
}
