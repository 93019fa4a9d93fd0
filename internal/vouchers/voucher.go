package vouchers

import (
	"fmt"

	"github.com/angelmondragon/cartsync/pkg/db/models"
	"github.com/angelmondragon/cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
)

// Voucher is a discount rule. Amounts are in the currency's smallest unit;
// Value is a percent for percentage vouchers.
type Voucher struct {
	ID             string            `json:"id"`
	Code           string            `json:"code,omitempty"`
	Type           enums.VoucherType `json:"type"`
	Value          int64             `json:"value"`
	MaxDiscount    *int64            `json:"max_discount,omitempty"`
	MinTransaction *int64            `json:"min_transaction,omitempty"`
	IsActive       bool              `json:"is_active"`
}

// Validate checks the type/value invariant.
func (v Voucher) Validate() error {
	if !v.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid voucher type %q", v.Type))
	}
	switch v.Type {
	case enums.VoucherTypePercentage:
		if v.Value <= 0 || v.Value > 100 {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage voucher value must be within (0,100]")
		}
	case enums.VoucherTypeFixed:
		if v.Value <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "fixed voucher value must be positive")
		}
	}
	if v.MaxDiscount != nil && *v.MaxDiscount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max discount cannot be negative")
	}
	if v.MinTransaction != nil && *v.MinTransaction < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "minimum transaction cannot be negative")
	}
	return nil
}

func fromModel(m models.Voucher) Voucher {
	return Voucher{
		ID:             m.ID,
		Code:           m.Code,
		Type:           m.Type,
		Value:          m.Value,
		MaxDiscount:    m.MaxDiscountCents,
		MinTransaction: m.MinTransactionCents,
		IsActive:       m.IsActive,
	}
}

func toModel(v Voucher) models.Voucher {
	return models.Voucher{
		ID:                  v.ID,
		Code:                v.Code,
		Type:                v.Type,
		Value:               v.Value,
		MaxDiscountCents:    v.MaxDiscount,
		MinTransactionCents: v.MinTransaction,
		IsActive:            v.IsActive,
	}
}
