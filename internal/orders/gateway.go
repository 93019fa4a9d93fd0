package orders

import "context"

// Gateway is the ordering backend. FetchOrder returns (nil, nil) when the
// session holds no order. Errors carry pkg/errors codes: DEPENDENCY_ERROR for
// transport and server failures, STATE_CONFLICT for logical rejections.
type Gateway interface {
	FetchOrder(ctx context.Context, ref OrderRef) (*Order, error)
	CreateOrderLine(ctx context.Context, ref OrderRef, input CreateLineInput) (CreateLineResult, error)
	UpdateLineQuantity(ctx context.Context, ref OrderRef, lineID string, quantity int) error
	DeleteOrder(ctx context.Context, ref OrderRef, orderCode string) error
	FetchProduct(ctx context.Context, ref OrderRef, productRef string) (*Product, error)
}
