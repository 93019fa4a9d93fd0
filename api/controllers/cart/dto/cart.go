package dto

import "github.com/angelmondragon/cartsync/pkg/money"

// AddItemRequest adds a product configuration to the session cart.
type AddItemRequest struct {
	ProductRef  string   `json:"product_ref" validate:"required,notblank,max=128"`
	Name        string   `json:"name" validate:"required,notblank,max=200"`
	UnitPrice   int64    `json:"unit_price" validate:"min=0"`
	Quantity    int      `json:"quantity" validate:"required,min=1"`
	Options     []string `json:"options" validate:"omitempty,max=20,dive,notblank"`
	VariantRefs []string `json:"variant_refs"`
	Size        string   `json:"size"`
	IceLevel    string   `json:"ice_level"`
	Note        string   `json:"note" validate:"max=500"`
	ImageRef    string   `json:"image_ref"`
}

// UpdateItemRequest edits a line in place. Absent fields stay unchanged.
type UpdateItemRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1"`
	UnitPrice   *int64   `json:"unit_price" validate:"omitempty,min=0"`
	Quantity    *int     `json:"quantity"`
	Options     []string `json:"options" validate:"omitempty,max=20,dive,notblank"`
	VariantRefs []string `json:"variant_refs"`
	Size        *string  `json:"size"`
	IceLevel    *string  `json:"ice_level"`
	Note        *string  `json:"note" validate:"omitempty,max=500"`
	ImageRef    *string  `json:"image_ref"`
}

type CartItem struct {
	ID           string        `json:"id"`
	ProductRef   string        `json:"product_ref"`
	Name         string        `json:"name"`
	UnitPrice    money.Display `json:"unit_price"`
	Quantity     int           `json:"quantity"`
	LineTotal    money.Display `json:"line_total"`
	Options      []string      `json:"options"`
	VariantRefs  []string      `json:"variant_refs,omitempty"`
	Size         string        `json:"size,omitempty"`
	IceLevel     string        `json:"ice_level,omitempty"`
	Note         string        `json:"note,omitempty"`
	OrderLineRef *string       `json:"order_line_ref,omitempty"`
	ImageRef     string        `json:"image_ref,omitempty"`
}

type Cart struct {
	SessionID  string        `json:"session_id"`
	Version    uint64        `json:"version"`
	Items      []CartItem    `json:"items"`
	TotalItems int           `json:"total_items"`
	TotalPrice money.Display `json:"total_price"`
}
