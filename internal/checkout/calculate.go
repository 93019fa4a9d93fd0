package checkout

import (
	"github.com/angelmondragon/cartsync/internal/cart"
	"github.com/angelmondragon/cartsync/internal/vouchers"
	"github.com/angelmondragon/cartsync/pkg/enums"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Result is the financial breakdown shown at checkout. Every amount is an
// integer in the currency's smallest unit.
type Result struct {
	Subtotal          int64   `json:"subtotal"`
	Tax               int64   `json:"tax"`
	Discount          int64   `json:"discount"`
	Total             int64   `json:"total"`
	Savings           int64   `json:"savings"`
	SavingsPercentage float64 `json:"savings_percentage"`
}

// Calculate derives the checkout breakdown. Each step works on the previous
// step's integer result. Rounding is half away from zero. The voucher is
// re-checked against the subtotal and ignored when it cannot apply.
func Calculate(items []cart.LineItem, taxRate decimal.Decimal, voucher *vouchers.Voucher) Result {
	subtotal := Subtotal(items)
	if subtotal <= 0 {
		return Result{}
	}

	tax := roundInt(decimal.NewFromInt(subtotal).Mul(NormalizeTaxRate(taxRate)))
	discount := Discount(subtotal, voucher)

	gross := subtotal + tax
	total := gross - discount
	if total < 0 {
		total = 0
	}
	savings := gross - total

	return Result{
		Subtotal:          subtotal,
		Tax:               tax,
		Discount:          discount,
		Total:             total,
		Savings:           savings,
		SavingsPercentage: savingsPercentage(savings, gross),
	}
}

// Subtotal sums price × quantity across lines.
func Subtotal(items []cart.LineItem) int64 {
	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		subtotal += item.LineTotal()
	}
	return subtotal
}

// Discount returns the amount voucher takes off subtotal, or 0 when the
// voucher is absent or inapplicable.
func Discount(subtotal int64, voucher *vouchers.Voucher) int64 {
	if subtotal <= 0 || !vouchers.Validate(voucher, subtotal).CanApply {
		return 0
	}

	var discount int64
	switch voucher.Type {
	case enums.VoucherTypePercentage:
		discount = roundInt(decimal.NewFromInt(subtotal).Mul(decimal.NewFromInt(voucher.Value)).Div(hundred))
		if voucher.MaxDiscount != nil && discount > *voucher.MaxDiscount {
			discount = *voucher.MaxDiscount
		}
	case enums.VoucherTypeFixed:
		discount = min(voucher.Value, subtotal)
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// NormalizeTaxRate clamps rate into [0,1].
func NormalizeTaxRate(rate decimal.Decimal) decimal.Decimal {
	if rate.IsNegative() {
		return decimal.Zero
	}
	if rate.GreaterThan(one) {
		return one
	}
	return rate
}

func savingsPercentage(savings, gross int64) float64 {
	if gross <= 0 || savings <= 0 {
		return 0
	}
	pct, _ := decimal.NewFromInt(savings).Mul(hundred).Div(decimal.NewFromInt(gross)).Round(2).Float64()
	return pct
}

func roundInt(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
