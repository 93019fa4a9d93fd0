package vouchers

import "fmt"

const (
	ReasonInactive          = "voucher inactive"
	reasonMinimumNotMetTmpl = "minimum transaction not met: %d"
)

// Validation is the outcome of checking a voucher against a subtotal.
type Validation struct {
	CanApply bool   `json:"can_apply"`
	Reason   string `json:"reason,omitempty"`
}

// Validate runs the applicability rules in order; the first failing rule wins.
// A nil voucher cannot apply and carries no reason.
func Validate(v *Voucher, subtotal int64) Validation {
	if v == nil {
		return Validation{}
	}
	if !v.IsActive {
		return Validation{Reason: ReasonInactive}
	}
	if v.MinTransaction != nil && subtotal < *v.MinTransaction {
		return Validation{Reason: MinimumNotMetReason(*v.MinTransaction)}
	}
	return Validation{CanApply: true}
}

// MinimumNotMetReason renders the reason reported when the subtotal is below min.
func MinimumNotMetReason(min int64) string {
	return fmt.Sprintf(reasonMinimumNotMetTmpl, min)
}
