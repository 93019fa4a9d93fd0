package enums

import "fmt"

// OrderStatus tracks the lifecycle of the remote order a cart is bound to.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFinalized OrderStatus = "finalized"
	OrderStatusCanceled  OrderStatus = "canceled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusOpen,
	OrderStatusSubmitted,
	OrderStatusPaid,
	OrderStatusFinalized,
	OrderStatusCanceled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsMutable reports whether lines of an order in this status may still change.
func (o OrderStatus) IsMutable() bool {
	return o == OrderStatusOpen || o == ""
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
