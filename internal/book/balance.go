package book

import "github.com/shopspring/decimal"

// Balances sums split quantities per account over every transaction in the
// book, keyed by account GUID. Accounts with no splits are absent from the
// map.
func (b *Book) Balances() map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal)
	for _, t := range b.Transactions {
		for _, s := range t.Splits {
			if s.Account == nil {
				continue
			}
			balances[s.Account.GUID] = balances[s.Account.GUID].Add(s.Quantity)
		}
	}
	return balances
}

// Balance returns the closing balance of a single account in its own
// commodity.
func (b *Book) Balance(a *Account) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range b.Transactions {
		for _, s := range t.Splits {
			if s.Account == a {
				sum = sum.Add(s.Quantity)
			}
		}
	}
	return sum
}
