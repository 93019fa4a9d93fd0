package enums

import (
	"fmt"
	"strings"
)

// VoucherType distinguishes percentage vouchers from fixed-amount vouchers.
type VoucherType string

const (
	VoucherTypePercentage VoucherType = "percentage"
	VoucherTypeFixed      VoucherType = "fixed"
)

var validVoucherTypes = []VoucherType{
	VoucherTypePercentage,
	VoucherTypeFixed,
}

// String implements fmt.Stringer.
func (v VoucherType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VoucherType.
func (v VoucherType) IsValid() bool {
	for _, candidate := range validVoucherTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherType converts raw input into a VoucherType. Matching is case-insensitive.
func ParseVoucherType(value string) (VoucherType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validVoucherTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher type %q", value)
}
