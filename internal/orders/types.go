package orders

import (
	"github.com/angelmondragon/cartsync/pkg/enums"
)

// OrderRef addresses the remote order a session holds at an outlet.
type OrderRef struct {
	OutletRef string
	SessionID string
}

// Order is the server-side record a cart is reconciled against.
type Order struct {
	ID            string            `json:"id"`
	Code          string            `json:"code"`
	OutletRef     string            `json:"outlet_ref"`
	Status        enums.OrderStatus `json:"status"`
	Lines         []OrderLine       `json:"lines"`
	SubtotalCents int64             `json:"subtotal_cents"`
	TaxCents      int64             `json:"tax_cents"`
	FeeCents      int64             `json:"fee_cents"`
	TotalCents    int64             `json:"total_cents"`
}

// OrderLine carries server-confirmed price, extra price and quantity.
type OrderLine struct {
	ID              string   `json:"id"`
	ProductRef      string   `json:"product_ref"`
	Name            string   `json:"name"`
	PriceCents      int64    `json:"price_cents"`
	ExtraPriceCents int64    `json:"extra_price_cents"`
	Quantity        int      `json:"quantity"`
	VariantRefs     []string `json:"variant_refs,omitempty"`
	Options         []string `json:"options,omitempty"`
	Note            string   `json:"note,omitempty"`
	ImageRef        string   `json:"image_ref,omitempty"`
}

// UnitPrice is the per-unit amount the cart displays for this line.
func (l OrderLine) UnitPrice() int64 {
	return l.PriceCents + l.ExtraPriceCents
}

// Product is the catalog entry used to resolve variant identifiers.
type Product struct {
	Ref      string    `json:"ref"`
	Name     string    `json:"name"`
	Variants []Variant `json:"variants"`
}

// Variant is a selectable product option.
type Variant struct {
	Ref             string `json:"ref"`
	Name            string `json:"name"`
	Group           string `json:"group,omitempty"`
	ExtraPriceCents int64  `json:"extra_price_cents"`
}

// CreateLineInput is the payload for adding a line to the remote order.
type CreateLineInput struct {
	ProductRef  string   `json:"product_ref"`
	VariantRefs []string `json:"variant_refs"`
	Quantity    int      `json:"quantity"`
	Note        string   `json:"note,omitempty"`
}

// CreateLineResult identifies the order and line created by the backend.
type CreateLineResult struct {
	OrderID   string `json:"order_id"`
	OrderCode string `json:"order_code"`
	LineID    string `json:"line_id"`
}
