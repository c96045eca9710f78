package book

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// The SQLite backend maps the application's database schema: commodities,
// accounts, transactions and splits tables with 32-hex guid keys and
// num/denom pairs for amounts. Saving rewrites the accounts, transactions
// and splits tables in one database transaction; all other tables survive
// untouched from the file copy.

const sqliteDateLayout = "2006-01-02 15:04:05"

func openSQLite(path string) (*Book, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	b := &Book{}

	if err := db.QueryRow("SELECT guid FROM books LIMIT 1").Scan(&b.ID); err != nil {
		return nil, fmt.Errorf("reading book row: %w", err)
	}

	commodities := make(map[string]*Commodity)
	rows, err := db.Query("SELECT guid, namespace, mnemonic, COALESCE(fullname, ''), fraction FROM commodities")
	if err != nil {
		return nil, fmt.Errorf("reading commodities: %w", err)
	}
	for rows.Next() {
		c := &Commodity{}
		if err := rows.Scan(&c.GUID, &c.Space, &c.ID, &c.Name, &c.Fraction); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning commodity: %w", err)
		}
		if c.Space == "template" {
			continue
		}
		commodities[c.GUID] = c
		b.Commodities = append(b.Commodities, c)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("reading commodities: %w", err)
	}

	type accountRow struct {
		account    *Account
		parentGUID string
	}
	accounts := make(map[string]*accountRow)
	var order []string
	rows, err = db.Query(`SELECT guid, name, account_type,
			COALESCE(commodity_guid, ''), commodity_scu,
			COALESCE(parent_guid, ''), COALESCE(code, ''),
			COALESCE(description, ''), COALESCE(hidden, 0), COALESCE(placeholder, 0)
		FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	for rows.Next() {
		a := &Account{}
		var commodityGUID, parentGUID string
		var hidden, placeholder int
		if err := rows.Scan(&a.GUID, &a.Name, &a.Type, &commodityGUID, &a.SCU,
			&parentGUID, &a.Code, &a.Description, &hidden, &placeholder); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		a.Commodity = commodities[commodityGUID]
		a.Hidden = hidden != 0
		a.Placeholder = placeholder != 0
		accounts[a.GUID] = &accountRow{account: a, parentGUID: parentGUID}
		order = append(order, a.GUID)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}

	for _, guid := range order {
		row := accounts[guid]
		if row.parentGUID == "" {
			if row.account.Type == TypeRoot && b.Root == nil {
				b.Root = row.account
			}
			continue
		}
		parent, ok := accounts[row.parentGUID]
		if !ok {
			return nil, fmt.Errorf("account %s references unknown parent %s", guid, row.parentGUID)
		}
		row.account.Parent = parent.account
		parent.account.Children = append(parent.account.Children, row.account)
	}
	if b.Root == nil {
		return nil, fmt.Errorf("no root account found")
	}

	transactions := make(map[string]*Transaction)
	rows, err = db.Query(`SELECT guid, COALESCE(currency_guid, ''), COALESCE(num, ''),
			COALESCE(post_date, ''), COALESCE(enter_date, ''), COALESCE(description, '')
		FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	for rows.Next() {
		t := &Transaction{}
		var currencyGUID, postDate, enterDate string
		if err := rows.Scan(&t.GUID, &currencyGUID, &t.Num, &postDate, &enterDate, &t.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t.Currency = commodities[currencyGUID]
		if t.DatePosted, err = parseSQLiteDate(postDate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("transaction %s: %w", t.GUID, err)
		}
		if t.DateEntered, err = parseSQLiteDate(enterDate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("transaction %s: %w", t.GUID, err)
		}
		transactions[t.GUID] = t
		b.Transactions = append(b.Transactions, t)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}

	rows, err = db.Query(`SELECT guid, tx_guid, account_guid, COALESCE(memo, ''),
			COALESCE(action, ''), COALESCE(reconcile_state, 'n'),
			value_num, value_denom, quantity_num, quantity_denom
		FROM splits`)
	if err != nil {
		return nil, fmt.Errorf("reading splits: %w", err)
	}
	for rows.Next() {
		s := &Split{}
		var txGUID, accountGUID string
		var valueNum, valueDenom, quantityNum, quantityDenom int64
		if err := rows.Scan(&s.GUID, &txGUID, &accountGUID, &s.Memo, &s.Action,
			&s.ReconcileState, &valueNum, &valueDenom, &quantityNum, &quantityDenom); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning split: %w", err)
		}
		t, ok := transactions[txGUID]
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("split %s references unknown transaction %s", s.GUID, txGUID)
		}
		row, ok := accounts[accountGUID]
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("split %s references unknown account %s", s.GUID, accountGUID)
		}
		s.Account = row.account
		if s.Value, err = parseNumeric(fmt.Sprintf("%d/%d", valueNum, valueDenom)); err != nil {
			rows.Close()
			return nil, fmt.Errorf("split %s: %w", s.GUID, err)
		}
		if s.Quantity, err = parseNumeric(fmt.Sprintf("%d/%d", quantityNum, quantityDenom)); err != nil {
			rows.Close()
			return nil, fmt.Errorf("split %s: %w", s.GUID, err)
		}
		t.Splits = append(t.Splits, s)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("reading splits: %w", err)
	}

	return b, nil
}

func (b *Book) saveSQLite(path string) error {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM splits",
		"DELETE FROM transactions",
		"DELETE FROM accounts",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clearing tables: %w", err)
		}
	}

	if err := insertAccount(tx, b.Root); err != nil {
		return err
	}
	for _, a := range b.Accounts() {
		if err := insertAccount(tx, a); err != nil {
			return err
		}
	}

	for _, t := range b.Transactions {
		currencyGUID := ""
		if t.Currency != nil {
			currencyGUID = t.Currency.GUID
		}
		_, err := tx.Exec(`INSERT INTO transactions
				(guid, currency_guid, num, post_date, enter_date, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.GUID, currencyGUID, t.Num,
			formatSQLiteDate(t.DatePosted), formatSQLiteDate(t.DateEntered), t.Description)
		if err != nil {
			return fmt.Errorf("inserting transaction %s: %w", t.GUID, err)
		}
		for _, s := range t.Splits {
			valueDenom := 100
			if t.Currency != nil {
				valueDenom = t.Currency.Fraction
			}
			quantityDenom := s.Account.SmallestFraction()
			valueNum, err := numericNum(s.Value, valueDenom)
			if err != nil {
				return fmt.Errorf("split %s value: %w", s.GUID, err)
			}
			quantityNum, err := numericNum(s.Quantity, quantityDenom)
			if err != nil {
				return fmt.Errorf("split %s quantity: %w", s.GUID, err)
			}
			state := s.ReconcileState
			if state == "" {
				state = "n"
			}
			_, err = tx.Exec(`INSERT INTO splits
					(guid, tx_guid, account_guid, memo, action, reconcile_state,
					 reconcile_date, value_num, value_denom, quantity_num, quantity_denom, lot_guid)
				VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, NULL)`,
				s.GUID, t.GUID, s.Account.GUID, s.Memo, s.Action, state,
				valueNum, int64(valueDenom), quantityNum, int64(quantityDenom))
			if err != nil {
				return fmt.Errorf("inserting split %s: %w", s.GUID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func insertAccount(tx *sql.Tx, a *Account) error {
	commodityGUID := ""
	scu := a.SCU
	if a.Commodity != nil {
		commodityGUID = a.Commodity.GUID
		if scu == 0 {
			scu = a.Commodity.Fraction
		}
	}
	parentGUID := ""
	if a.Parent != nil {
		parentGUID = a.Parent.GUID
	}
	_, err := tx.Exec(`INSERT INTO accounts
			(guid, name, account_type, commodity_guid, commodity_scu, non_std_scu,
			 parent_guid, code, description, hidden, placeholder)
		VALUES (?, ?, ?, nullif(?, ''), ?, 0, nullif(?, ''), ?, ?, ?, ?)`,
		a.GUID, a.Name, string(a.Type), commodityGUID, scu,
		parentGUID, a.Code, a.Description, boolInt(a.Hidden), boolInt(a.Placeholder))
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", a.GUID, err)
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func parseSQLiteDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(sqliteDateLayout, s); err == nil {
		return t, nil
	}
	// Older files store compact timestamps.
	t, err := time.Parse("20060102150405", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

func formatSQLiteDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sqliteDateLayout)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
