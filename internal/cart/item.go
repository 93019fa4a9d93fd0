package cart

import (
	"slices"
	"strings"
)

// LineItem is one product configuration plus quantity held in a cart.
// Prices are in the currency's smallest unit.
type LineItem struct {
	ID           string   `json:"id"`
	ProductRef   string   `json:"product_ref"`
	Name         string   `json:"name"`
	UnitPrice    int64    `json:"unit_price"`
	Quantity     int      `json:"quantity"`
	Options      []string `json:"options,omitempty"`
	VariantRefs  []string `json:"variant_refs,omitempty"`
	Size         string   `json:"size,omitempty"`
	IceLevel     string   `json:"ice_level,omitempty"`
	Note         string   `json:"note,omitempty"`
	OrderLineRef *string  `json:"order_line_ref,omitempty"`
	ImageRef     string   `json:"image_ref,omitempty"`
}

// LineTotal returns UnitPrice × Quantity.
func (i LineItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// IsSynced reports whether the line has been confirmed by the remote order.
func (i LineItem) IsSynced() bool {
	return i.OrderLineRef != nil && strings.TrimSpace(*i.OrderLineRef) != ""
}

// Key returns the identity used to merge repeated additions of the same configuration.
func (i LineItem) Key() LineKey {
	opts := slices.Clone(i.Options)
	slices.Sort(opts)
	return LineKey{
		ProductRef: i.ProductRef,
		Name:       i.Name,
		Options:    opts,
		Size:       i.Size,
		IceLevel:   i.IceLevel,
		Note:       i.Note,
	}
}

func (i LineItem) clone() LineItem {
	out := i
	out.Options = slices.Clone(i.Options)
	out.VariantRefs = slices.Clone(i.VariantRefs)
	if i.OrderLineRef != nil {
		ref := *i.OrderLineRef
		out.OrderLineRef = &ref
	}
	return out
}

// LineKey is the canonical tuple two lines must share to be the same line.
// Options are held sorted.
type LineKey struct {
	ProductRef string
	Name       string
	Options    []string
	Size       string
	IceLevel   string
	Note       string
}

// Equal compares keys field by field.
func (k LineKey) Equal(other LineKey) bool {
	return k.ProductRef == other.ProductRef &&
		k.Name == other.Name &&
		k.Size == other.Size &&
		k.IceLevel == other.IceLevel &&
		k.Note == other.Note &&
		slices.Equal(k.Options, other.Options)
}

// ItemPatch carries the fields replaced by an in-place edit. Nil fields are left untouched.
type ItemPatch struct {
	Name         *string
	UnitPrice    *int64
	Quantity     *int
	Options      []string
	VariantRefs  []string
	Size         *string
	IceLevel     *string
	Note         *string
	ImageRef     *string
	OrderLineRef *string
}

func (p ItemPatch) apply(item LineItem) LineItem {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.UnitPrice != nil {
		item.UnitPrice = *p.UnitPrice
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.Options != nil {
		item.Options = slices.Clone(p.Options)
	}
	if p.VariantRefs != nil {
		item.VariantRefs = slices.Clone(p.VariantRefs)
	}
	if p.Size != nil {
		item.Size = *p.Size
	}
	if p.IceLevel != nil {
		item.IceLevel = *p.IceLevel
	}
	if p.Note != nil {
		item.Note = *p.Note
	}
	if p.ImageRef != nil {
		item.ImageRef = *p.ImageRef
	}
	if p.OrderLineRef != nil {
		ref := *p.OrderLineRef
		item.OrderLineRef = &ref
	}
	return item
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.clone()
	}
	return out
}
