// Package balance derives the computed columns of a ledger entry.
package balance

import "github.com/shopspring/decimal"

// Places is the number of decimal places kept for Value and Balance.
const Places = 2

// Result holds the derived columns for a prospective entry.
type Result struct {
	Value   decimal.Decimal `json:"value"`
	Balance decimal.Decimal `json:"balance"`
}

// Calculate returns Value = weight × rate and
// Balance = collection − Value + previousBalance, both rounded to Places.
func Calculate(weight, rate decimal.Decimal, collection int64, previousBalance decimal.Decimal) Result {
	value := weight.Mul(rate).Round(Places)
	bal := decimal.NewFromInt(collection).Sub(value).Add(previousBalance).Round(Places)
	return Result{Value: value, Balance: bal}
}
