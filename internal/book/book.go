// Package book reads and writes GnuCash-format accounting files. Both the
// XML backend (plain or gzip-compressed) and the SQLite backend are
// supported; a book loaded from one is saved back in the same format.
package book

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType is the native account classification.
type AccountType string

const (
	TypeRoot       AccountType = "ROOT"
	TypeBank       AccountType = "BANK"
	TypeCash       AccountType = "CASH"
	TypeAsset      AccountType = "ASSET"
	TypeCredit     AccountType = "CREDIT"
	TypeLiability  AccountType = "LIABILITY"
	TypeStock      AccountType = "STOCK"
	TypeMutual     AccountType = "MUTUAL"
	TypeCurrency   AccountType = "CURRENCY"
	TypeIncome     AccountType = "INCOME"
	TypeExpense    AccountType = "EXPENSE"
	TypeEquity     AccountType = "EQUITY"
	TypeReceivable AccountType = "RECEIVABLE"
	TypePayable    AccountType = "PAYABLE"
	TypeTrading    AccountType = "TRADING"
)

// BalanceSheet reports whether balances of this account type carry forward
// across fiscal years. Income, expense, and trading balances reset each
// year; the root pseudo-account holds no balance at all.
func (t AccountType) BalanceSheet() bool {
	switch t {
	case TypeRoot, TypeIncome, TypeExpense, TypeTrading:
		return false
	default:
		return true
	}
}

// Commodity is a currency or security a book prices accounts in.
type Commodity struct {
	GUID     string
	Space    string // "CURRENCY" for ISO currencies
	ID       string // mnemonic, e.g. "EUR"
	Name     string
	Fraction int // smallest representable unit, e.g. 100 for cents
}

// Account is one node in the chart-of-accounts tree.
type Account struct {
	GUID        string
	Name        string
	Type        AccountType
	Commodity   *Commodity
	SCU         int // smallest commodity unit for this account
	Code        string
	Description string
	Placeholder bool
	Hidden      bool
	Parent      *Account
	Children    []*Account
	ExtraSlots  []string // unparsed slot markup carried through XML files
}

// SmallestFraction returns the denominator balances on this account are
// kept at: the account SCU, else its commodity fraction, else 100.
func (a *Account) SmallestFraction() int {
	if a != nil {
		if a.SCU > 0 {
			return a.SCU
		}
		if a.Commodity != nil && a.Commodity.Fraction > 0 {
			return a.Commodity.Fraction
		}
	}
	return 100
}

// FullName returns the colon-joined path from the root, root excluded:
// "Assets:Bank:Checking".
func (a *Account) FullName() string {
	if a == nil || a.Parent == nil {
		return ""
	}
	parent := a.Parent.FullName()
	if parent == "" {
		return a.Name
	}
	return parent + ":" + a.Name
}

// Split is one leg of a transaction. Value is denominated in the
// transaction currency, Quantity in the account commodity.
type Split struct {
	GUID           string
	Account        *Account
	Memo           string
	Action         string
	ReconcileState string // "n", "c" or "y"
	Value          decimal.Decimal
	Quantity       decimal.Decimal
}

// Transaction is a dated, balanced set of splits.
type Transaction struct {
	GUID        string
	Currency    *Commodity
	Num         string
	DatePosted  time.Time
	DateEntered time.Time
	Description string
	Splits      []*Split
	ExtraSlots  []string // unparsed slot markup carried through XML files
}

// Balanced reports whether the split values sum to zero.
func (t *Transaction) Balanced() bool {
	sum := decimal.Zero
	for _, s := range t.Splits {
		sum = sum.Add(s.Value)
	}
	return sum.IsZero()
}

// Format identifies the on-disk encoding of a book.
type Format int

const (
	FormatXML Format = iota
	FormatXMLGzip
	FormatSQLite
)

// RawElement is a book-level XML element the model does not interpret.
// Price databases, scheduled transactions and budgets ride through a
// round trip this way instead of being dropped.
type RawElement struct {
	Name   string // prefixed element name, e.g. "gnc:pricedb"
	Markup string // the complete element, verbatim
}

// Book is an in-memory accounting file.
type Book struct {
	ID           string
	Commodities  []*Commodity
	Root         *Account
	Transactions []*Transaction
	Extra        []RawElement

	path   string
	format Format
}

// New creates an empty XML-format book with a root account and a single
// currency commodity.
func New(currency string) *Book {
	cmdty := &Commodity{
		GUID:     NewGUID(),
		Space:    "CURRENCY",
		ID:       currency,
		Fraction: 100,
	}
	return &Book{
		ID:          NewGUID(),
		Commodities: []*Commodity{cmdty},
		Root: &Account{
			GUID: NewGUID(),
			Name: "Root Account",
			Type: TypeRoot,
		},
		format: FormatXML,
	}
}

// Path returns the file path this book was opened from, if any.
func (b *Book) Path() string { return b.path }

// Commodity looks a commodity up by namespace and mnemonic. The namespace
// "CURRENCY" also matches the legacy "ISO4217" spelling.
func (b *Book) Commodity(space, id string) *Commodity {
	for _, c := range b.Commodities {
		if c.ID != id {
			continue
		}
		if c.Space == space {
			return c
		}
		if space == "CURRENCY" && c.Space == "ISO4217" {
			return c
		}
	}
	return nil
}

// Accounts returns every account except the root, depth-first with
// siblings in name order.
func (b *Book) Accounts() []*Account {
	var out []*Account
	var walk func(a *Account)
	walk = func(a *Account) {
		children := append([]*Account(nil), a.Children...)
		sort.Slice(children, func(i, j int) bool {
			return children[i].Name < children[j].Name
		})
		for _, c := range children {
			out = append(out, c)
			walk(c)
		}
	}
	if b.Root != nil {
		walk(b.Root)
	}
	return out
}

// Account looks an account up by its colon-joined full name.
func (b *Book) Account(fullName string) *Account {
	if fullName == "" {
		return nil
	}
	cur := b.Root
	for _, part := range strings.Split(fullName, ":") {
		var next *Account
		for _, c := range cur.Children {
			if c.Name == part {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// NewAccount creates an account under parent and returns it.
func (b *Book) NewAccount(parent *Account, name string, typ AccountType, cmdty *Commodity) *Account {
	scu := 0
	if cmdty != nil {
		scu = cmdty.Fraction
	}
	a := &Account{
		GUID:      NewGUID(),
		Name:      name,
		Type:      typ,
		Commodity: cmdty,
		SCU:       scu,
		Parent:    parent,
	}
	parent.Children = append(parent.Children, a)
	return a
}

// AddTransaction appends a transaction to the book.
func (b *Book) AddTransaction(t *Transaction) {
	b.Transactions = append(b.Transactions, t)
}

// DeleteTransactions removes every transaction, leaving the account tree
// untouched.
func (b *Book) DeleteTransactions() {
	b.Transactions = nil
}

// NewGUID returns a fresh 32-hex-character identifier in the native format.
func NewGUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
