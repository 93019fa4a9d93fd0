package checkout

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cartsync/internal/cart"
	"github.com/angelmondragon/cartsync/internal/vouchers"
	"github.com/angelmondragon/cartsync/pkg/enums"
	"github.com/angelmondragon/cartsync/pkg/logger"
	"github.com/angelmondragon/cartsync/pkg/money"
	"github.com/shopspring/decimal"
)

// VoucherLookup resolves the voucher selected at checkout.
type VoucherLookup interface {
	Lookup(ctx context.Context, id string) (*vouchers.Voucher, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Vouchers VoucherLookup
	TaxRate  decimal.Decimal
	Currency enums.Currency
	Logger   *logger.Logger
}

// Summary is the checkout breakdown plus the voucher verdict that produced it.
type Summary struct {
	Result     Result                   `json:"result"`
	Voucher    *vouchers.Voucher        `json:"voucher,omitempty"`
	Validation vouchers.Validation      `json:"voucher_validation"`
	Display    map[string]money.Display `json:"display"`
}

// Service computes checkout summaries for a cart.
type Service interface {
	Summary(ctx context.Context, items []cart.LineItem, voucherID string) (Summary, error)
}

type service struct {
	vouchers  VoucherLookup
	taxRate   decimal.Decimal
	currency  enums.Currency
	logg      *logger.Logger
	calculate func([]cart.LineItem, decimal.Decimal, *vouchers.Voucher) Result
}

func NewService(params ServiceParams) (Service, error) {
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher lookup required")
	}
	currency := params.Currency
	if !currency.IsValid() {
		currency = enums.CurrencyIDR
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		vouchers:  params.Vouchers,
		taxRate:   NormalizeTaxRate(params.TaxRate),
		currency:  currency,
		logg:      logg,
		calculate: Calculate,
	}, nil
}

// Summary never fails on calculation: an unexpected panic is logged and a
// zeroed breakdown is returned. Voucher lookup errors are returned as is.
func (s *service) Summary(ctx context.Context, items []cart.LineItem, voucherID string) (summary Summary, err error) {
	voucher, err := s.vouchers.Lookup(ctx, voucherID)
	if err != nil {
		return Summary{}, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logg.Error(s.logg.WithField(ctx, "voucher_id", voucherID), "checkout.calculate_panic", fmt.Errorf("panic: %v", rec))
			summary = s.withDisplay(Summary{})
			err = nil
		}
	}()

	result := s.calculate(items, s.taxRate, voucher)
	return s.withDisplay(Summary{
		Result:     result,
		Voucher:    voucher,
		Validation: vouchers.Validate(voucher, result.Subtotal),
	}), nil
}

func (s *service) withDisplay(summary Summary) Summary {
	r := summary.Result
	summary.Display = map[string]money.Display{
		"subtotal": money.NewDisplay(r.Subtotal, s.currency),
		"tax":      money.NewDisplay(r.Tax, s.currency),
		"discount": money.NewDisplay(r.Discount, s.currency),
		"total":    money.NewDisplay(r.Total, s.currency),
		"savings":  money.NewDisplay(r.Savings, s.currency),
	}
	return summary
}
