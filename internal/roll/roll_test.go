package roll

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollbook-dev/rollbook/internal/book"
	"github.com/rollbook-dev/rollbook/internal/config"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// writeSourceBook saves a 2025 book with activity on bank, credit card,
// equity, income and expense accounts.
//
// Closing balances: Checking 600, Savings 300, Card -150, Equity:Initial
// -100, Expenses:Food 350, Income:Salary -1000, Assets:Empty 0.
func writeSourceBook(t *testing.T, path string) {
	t.Helper()

	b := book.New("EUR")
	eur := b.Commodity("CURRENCY", "EUR")

	assets := b.NewAccount(b.Root, "Assets", book.TypeAsset, eur)
	assets.Placeholder = true
	checking := b.NewAccount(assets, "Checking", book.TypeBank, eur)
	savings := b.NewAccount(assets, "Savings", book.TypeBank, eur)
	b.NewAccount(assets, "Empty", book.TypeBank, eur)

	liabilities := b.NewAccount(b.Root, "Liabilities", book.TypeLiability, eur)
	liabilities.Placeholder = true
	card := b.NewAccount(liabilities, "Card", book.TypeCredit, eur)

	equity := b.NewAccount(b.Root, "Equity", book.TypeEquity, eur)
	equity.Placeholder = true
	initial := b.NewAccount(equity, "Initial", book.TypeEquity, eur)

	income := b.NewAccount(b.Root, "Income", book.TypeIncome, eur)
	salary := b.NewAccount(income, "Salary", book.TypeIncome, eur)
	expenses := b.NewAccount(b.Root, "Expenses", book.TypeExpense, eur)
	food := b.NewAccount(expenses, "Food", book.TypeExpense, eur)

	add := func(day int, desc string, a1 *book.Account, amount string, a2 *book.Account) {
		d := dec(amount)
		b.AddTransaction(&book.Transaction{
			GUID:        book.NewGUID(),
			Currency:    eur,
			DatePosted:  time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC),
			DateEntered: time.Now(),
			Description: desc,
			Splits: []*book.Split{
				{GUID: book.NewGUID(), Account: a1, ReconcileState: "n", Value: d, Quantity: d},
				{GUID: book.NewGUID(), Account: a2, ReconcileState: "n", Value: d.Neg(), Quantity: d.Neg()},
			},
		})
	}

	add(2, "Initial funds", checking, "100.00", initial)
	add(5, "Salary", checking, "1000.00", salary)
	add(10, "Groceries", food, "200.00", checking)
	add(12, "Transfer to savings", savings, "300.00", checking)
	add(20, "Dinner on card", food, "150.00", card)

	require.NoError(t, b.SaveTo(path))
}

func TestRun_CarriesBalances(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "books-2025.gnucash")
	writeSourceBook(t, source)

	result, err := Run(Options{Source: source, Year: 2026, Config: config.Default()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "books-2026.gnucash"), result.Output)

	var accounts []string
	for _, e := range result.Entries {
		accounts = append(accounts, e.Account)
	}
	assert.Equal(t, []string{
		"Assets:Checking",
		"Assets:Savings",
		"Equity:Initial",
		"Liabilities:Card",
	}, accounts)

	got, err := book.Open(result.Output)
	require.NoError(t, err)

	// One opening transaction per carried account, all balanced, all dated
	// at the new period's start.
	require.Len(t, got.Transactions, 4)
	openingDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tx := range got.Transactions {
		assert.True(t, tx.Balanced(), "transaction for %s", tx.Splits[0].Account.FullName())
		assert.True(t, tx.DatePosted.Equal(openingDate))
		assert.Equal(t, "Opening balance", tx.Description)
		require.Len(t, tx.Splits, 2)
		assert.Equal(t, "Equity:Opening Balances", tx.Splits[1].Account.FullName())
	}

	// Closing balances of the old year open the new one.
	assert.True(t, dec("600.00").Equal(got.Balance(got.Account("Assets:Checking"))))
	assert.True(t, dec("300.00").Equal(got.Balance(got.Account("Assets:Savings"))))
	assert.True(t, dec("-150.00").Equal(got.Balance(got.Account("Liabilities:Card"))))
	assert.True(t, dec("-100.00").Equal(got.Balance(got.Account("Equity:Initial"))))
	assert.True(t, dec("-650.00").Equal(got.Balance(got.Account("Equity:Opening Balances"))))

	// Income and expense accounts start from zero.
	assert.True(t, got.Balance(got.Account("Income:Salary")).IsZero())
	assert.True(t, got.Balance(got.Account("Expenses:Food")).IsZero())
}

func TestRun_CarriesFractionalShares(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "books-2025.gnucash")

	b := book.New("EUR")
	eur := b.Commodity("CURRENCY", "EUR")
	acme := &book.Commodity{GUID: book.NewGUID(), Space: "NASDAQ", ID: "ACME", Name: "Acme Corp", Fraction: 10000}
	b.Commodities = append(b.Commodities, acme)

	assets := b.NewAccount(b.Root, "Assets", book.TypeAsset, eur)
	checking := b.NewAccount(assets, "Checking", book.TypeBank, eur)
	b.NewAccount(assets, "ACME", book.TypeStock, acme)

	cost := dec("123.46")
	shares := dec("12.3456")
	b.AddTransaction(&book.Transaction{
		GUID:        book.NewGUID(),
		Currency:    eur,
		DatePosted:  time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
		Description: "Buy ACME",
		Splits: []*book.Split{
			{GUID: book.NewGUID(), Account: b.Account("Assets:ACME"), ReconcileState: "n", Value: cost, Quantity: shares},
			{GUID: book.NewGUID(), Account: checking, ReconcileState: "n", Value: cost.Neg(), Quantity: cost.Neg()},
		},
	})
	require.NoError(t, b.SaveTo(source))

	result, err := Run(Options{Source: source, Year: 2026, Config: config.Default()})
	require.NoError(t, err)

	got, err := book.Open(result.Output)
	require.NoError(t, err)

	// The share balance carries at the stock's own fraction; the
	// offsetting equity quantity rounds to the equity denomination.
	assert.True(t, shares.Equal(got.Balance(got.Account("Assets:ACME"))))
	found := false
	for _, tx := range got.Transactions {
		if tx.Splits[0].Account.FullName() != "Assets:ACME" {
			continue
		}
		found = true
		require.Len(t, tx.Splits, 2)
		assert.True(t, shares.Equal(tx.Splits[0].Quantity))
		assert.True(t, shares.Neg().Equal(tx.Splits[1].Value))
		assert.True(t, dec("-12.35").Equal(tx.Splits[1].Quantity))
	}
	assert.True(t, found, "no opening transaction for the stock account")
}

func TestRun_SkipsZeroBalances(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "books-2025.gnucash")
	writeSourceBook(t, source)

	result, err := Run(Options{Source: source, Year: 2026, Config: config.Default()})
	require.NoError(t, err)

	for _, e := range result.Entries {
		assert.NotEqual(t, "Assets:Empty", e.Account)
		assert.False(t, e.Amount.IsZero())
	}
}

func TestRun_NoBalanceSheetActivity(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "books-2025.gnucash")

	b := book.New("EUR")
	eur := b.Commodity("CURRENCY", "EUR")
	assets := b.NewAccount(b.Root, "Assets", book.TypeAsset, eur)
	b.NewAccount(assets, "Checking", book.TypeBank, eur)
	require.NoError(t, b.SaveTo(source))

	result, err := Run(Options{Source: source, Year: 2026, Config: config.Default()})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)

	got, err := book.Open(result.Output)
	require.NoError(t, err)
	assert.Empty(t, got.Transactions)

	// Account structure is unchanged: no opening-equity accounts appear.
	assert.Nil(t, got.Account("Equity"))
	var names []string
	for _, a := range got.Accounts() {
		names = append(names, a.FullName())
	}
	assert.Equal(t, []string{"Assets", "Assets:Checking"}, names)
}

func TestRun_DestinationExists(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "books-2025.gnucash")
	writeSourceBook(t, source)

	dest := filepath.Join(dir, "books-2026.gnucash")
	require.NoError(t, os.WriteFile(dest, []byte("precious"), 0o644))
	srcBefore, err := os.ReadFile(source)
	require.NoError(t, err)

	_, err = Run(Options{Source: source, Year: 2026, Config: config.Default()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDestinationExists)

	// Neither file was touched.
	destAfter, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "precious", string(destAfter))
	srcAfter, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, srcBefore, srcAfter)
}

func TestRun_SourceMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(Options{
		Source: filepath.Join(dir, "books-2025.gnucash"),
		Year:   2026,
		Config: config.Default(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestRun_ExplicitOutputAndDate(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "books-2025.gnucash")
	writeSourceBook(t, source)

	output := filepath.Join(dir, "fresh.gnucash")
	opening := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC) // UK-style fiscal year
	result, err := Run(Options{
		Source:      source,
		Output:      output,
		Year:        2026,
		OpeningDate: opening,
		Config:      config.Default(),
	})
	require.NoError(t, err)
	assert.Equal(t, output, result.Output)

	got, err := book.Open(output)
	require.NoError(t, err)
	require.NotEmpty(t, got.Transactions)
	for _, tx := range got.Transactions {
		assert.True(t, tx.DatePosted.Equal(opening))
	}
}

func TestRun_ReusesExistingOpeningAccount(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "books-2025.gnucash")

	b := book.New("EUR")
	eur := b.Commodity("CURRENCY", "EUR")
	assets := b.NewAccount(b.Root, "Assets", book.TypeAsset, eur)
	checking := b.NewAccount(assets, "Checking", book.TypeBank, eur)
	equity := b.NewAccount(b.Root, "Equity", book.TypeEquity, eur)
	equity.Placeholder = true
	opening := b.NewAccount(equity, "Opening Balances", book.TypeEquity, eur)

	amount := dec("42.00")
	b.AddTransaction(&book.Transaction{
		GUID:        book.NewGUID(),
		Currency:    eur,
		DatePosted:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "Opening balance",
		Splits: []*book.Split{
			{GUID: book.NewGUID(), Account: checking, ReconcileState: "n", Value: amount, Quantity: amount},
			{GUID: book.NewGUID(), Account: opening, ReconcileState: "n", Value: amount.Neg(), Quantity: amount.Neg()},
		},
	})
	require.NoError(t, b.SaveTo(source))

	result, err := Run(Options{Source: source, Year: 2026, Config: config.Default()})
	require.NoError(t, err)

	// The opening-equity account is not carried forward onto itself; only
	// the checking balance rolls, offset against the existing account.
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "Assets:Checking", result.Entries[0].Account)

	got, err := book.Open(result.Output)
	require.NoError(t, err)
	require.Len(t, got.Transactions, 1)
	openingAccounts := 0
	for _, a := range got.Accounts() {
		if a.Name == "Opening Balances" {
			openingAccounts++
		}
	}
	assert.Equal(t, 1, openingAccounts, "no duplicate opening account created")
}
