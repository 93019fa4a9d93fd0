// Package money converts smallest-unit integer amounts to display strings.
// Arithmetic never happens here; callers format only at the response boundary.
package money

import (
	"github.com/angelmondragon/cartsync/pkg/enums"
	"github.com/shopspring/decimal"
)

// Amount is a monetary value in the currency's smallest unit.
type Amount = int64

// Format renders amount in display units, e.g. 1250 USD cents -> "12.50".
func Format(amount Amount, currency enums.Currency) string {
	exp := currency.Exponent()
	return decimal.New(amount, -exp).StringFixed(exp)
}

// Display pairs an amount with its rendered form for API responses.
type Display struct {
	Amount    Amount `json:"amount"`
	Formatted string `json:"formatted"`
	Currency  string `json:"currency"`
}

// NewDisplay builds the response representation of amount.
func NewDisplay(amount Amount, currency enums.Currency) Display {
	return Display{
		Amount:    amount,
		Formatted: Format(amount, currency),
		Currency:  currency.String(),
	}
}
