package models

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits stored for amounts and balances.
const MoneyScale = 2

// ValidAmount reports whether amount is strictly positive and representable
// at MoneyScale without rounding.
func ValidAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	return amount.Equal(amount.Truncate(MoneyScale))
}
