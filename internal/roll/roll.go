// Package roll creates a new fiscal-year book from a prior year's file.
// The file is copied, its transactions are dropped, and one opening
// transaction per balance-sheet account carries the closing balance
// forward against an opening-equity account.
package roll

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rollbook-dev/rollbook/internal/book"
	"github.com/rollbook-dev/rollbook/internal/config"
)

var (
	// ErrSourceMissing is returned when the source file does not exist.
	ErrSourceMissing = errors.New("source file does not exist")
	// ErrDestinationExists is returned instead of overwriting an existing
	// destination file.
	ErrDestinationExists = errors.New("destination file already exists")
)

// Options controls a roll run.
type Options struct {
	Source      string
	Output      string // derived from Source and Year when empty
	Year        int
	OpeningDate time.Time // defaults to January 1 of Year
	Config      *config.Config
}

// Entry describes one posted opening transaction.
type Entry struct {
	Account   string // full account name
	Amount    decimal.Decimal
	Commodity string
}

// Result reports what a roll run produced.
type Result struct {
	Output  string
	Entries []Entry
}

// Run performs the year roll. Any failure aborts the run; partially
// written output is left in place for the operator to inspect.
func Run(opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if _, err := os.Stat(opts.Source); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, opts.Source)
	} else if err != nil {
		return nil, fmt.Errorf("checking source: %w", err)
	}

	output := opts.Output
	if output == "" {
		output = DerivePath(opts.Source, opts.Year)
	}
	if _, err := os.Stat(output); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDestinationExists, output)
	}

	openingDate := opts.OpeningDate
	if openingDate.IsZero() {
		openingDate = time.Date(opts.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	if err := copyFile(opts.Source, output); err != nil {
		return nil, fmt.Errorf("copying book: %w", err)
	}

	src, err := book.Open(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	dst, err := book.Open(output)
	if err != nil {
		return nil, fmt.Errorf("opening copy: %w", err)
	}

	carried := closingEntries(src, cfg)

	dst.DeleteTransactions()

	result := &Result{Output: output}
	if len(carried) > 0 {
		equity, err := ensureOpeningAccount(dst, cfg)
		if err != nil {
			return nil, err
		}
		for _, c := range carried {
			entry, err := postOpening(dst, equity, c, openingDate, cfg.Opening.Description)
			if err != nil {
				return nil, err
			}
			result.Entries = append(result.Entries, entry)
		}
	}

	if err := dst.Save(); err != nil {
		return nil, fmt.Errorf("saving new book: %w", err)
	}
	return result, nil
}

type carry struct {
	fullName string
	amount   decimal.Decimal
}

// closingEntries collects the non-zero closing balances of every
// balance-sheet account. Placeholder accounts hold no balance of their
// own, and the opening-equity accounts themselves are never carried.
func closingEntries(src *book.Book, cfg *config.Config) []carry {
	openingName := cfg.Equity.Parent + ":" + cfg.Equity.Opening
	balances := src.Balances()

	var carried []carry
	for _, a := range src.Accounts() {
		if a.Placeholder || !a.Type.BalanceSheet() {
			continue
		}
		name := a.FullName()
		if name == cfg.Equity.Parent || name == openingName {
			continue
		}
		balance := balances[a.GUID]
		if balance.IsZero() {
			continue
		}
		carried = append(carried, carry{fullName: name, amount: balance})
	}
	return carried
}

// ensureOpeningAccount returns the opening-equity account in the new book,
// creating it (and its placeholder parent) on demand.
func ensureOpeningAccount(b *book.Book, cfg *config.Config) (*book.Account, error) {
	currency := b.Commodity("CURRENCY", cfg.Book.Currency)
	if currency == nil {
		return nil, fmt.Errorf("currency %s not found in book", cfg.Book.Currency)
	}

	parent := b.Account(cfg.Equity.Parent)
	if parent == nil {
		parent = b.NewAccount(b.Root, cfg.Equity.Parent, book.TypeEquity, currency)
		parent.Placeholder = true
	}

	opening := b.Account(cfg.Equity.Parent + ":" + cfg.Equity.Opening)
	if opening == nil {
		opening = b.NewAccount(parent, cfg.Equity.Opening, book.TypeEquity, currency)
	}
	return opening, nil
}

// postOpening adds one balanced opening transaction to the new book. The
// transaction is denominated in the carried account's own commodity;
// cross-currency conversion is out of scope, so the offsetting equity
// split records the same value one-to-one. The equity quantity is kept
// in the equity account's own denomination, so share balances carried
// from stock accounts round to it.
func postOpening(b *book.Book, equity *book.Account, c carry, date time.Time, description string) (Entry, error) {
	account := b.Account(c.fullName)
	if account == nil {
		return Entry{}, fmt.Errorf("account %s missing from new book", c.fullName)
	}

	currency := account.Commodity
	if currency == nil {
		currency = equity.Commodity
	}
	equityQuantity := book.RoundTo(c.amount, equity.SmallestFraction()).Neg()

	t := &book.Transaction{
		GUID:        book.NewGUID(),
		Currency:    currency,
		DatePosted:  date,
		DateEntered: time.Now(),
		Description: description,
		Splits: []*book.Split{
			{
				GUID:           book.NewGUID(),
				Account:        account,
				ReconcileState: "n",
				Value:          c.amount,
				Quantity:       c.amount,
			},
			{
				GUID:           book.NewGUID(),
				Account:        equity,
				ReconcileState: "n",
				Value:          c.amount.Neg(),
				Quantity:       equityQuantity,
			},
		},
	}
	if !t.Balanced() {
		return Entry{}, fmt.Errorf("opening transaction for %s does not balance", c.fullName)
	}
	b.AddTransaction(t)

	return Entry{Account: c.fullName, Amount: c.amount, Commodity: currency.ID}, nil
}
