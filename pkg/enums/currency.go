package enums

import "fmt"

// Currency represents supported denominations. Amounts are always held in the
// currency's smallest unit.
type Currency string

const (
	CurrencyIDR Currency = "IDR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

var currencyExponents = map[Currency]int32{
	CurrencyIDR: 0,
	CurrencyUSD: 2,
	CurrencyEUR: 2,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	_, ok := currencyExponents[c]
	return ok
}

// Exponent returns the number of decimal places between the smallest unit and the display unit.
func (c Currency) Exponent() int32 {
	return currencyExponents[c]
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(value)
	if c.IsValid() {
		return c, nil
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
