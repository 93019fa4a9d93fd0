package cart

import (
	"github.com/angelmondragon/cartsync/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/cartsync/internal/cart"
	"github.com/angelmondragon/cartsync/pkg/enums"
	"github.com/angelmondragon/cartsync/pkg/money"
)

// NewCart renders the store's current lines for API responses.
func NewCart(store *cartsvc.Store, currency enums.Currency) dto.Cart {
	lines := store.Items()
	items := make([]dto.CartItem, 0, len(lines))
	for _, line := range lines {
		options := line.Options
		if options == nil {
			options = []string{}
		}
		items = append(items, dto.CartItem{
			ID:           line.ID,
			ProductRef:   line.ProductRef,
			Name:         line.Name,
			UnitPrice:    money.NewDisplay(line.UnitPrice, currency),
			Quantity:     line.Quantity,
			LineTotal:    money.NewDisplay(line.LineTotal(), currency),
			Options:      options,
			VariantRefs:  line.VariantRefs,
			Size:         line.Size,
			IceLevel:     line.IceLevel,
			Note:         line.Note,
			OrderLineRef: line.OrderLineRef,
			ImageRef:     line.ImageRef,
		})
	}

	return dto.Cart{
		SessionID:  store.SessionID(),
		Version:    store.Version(),
		Items:      items,
		TotalItems: store.TotalItems(),
		TotalPrice: money.NewDisplay(store.TotalPrice(), currency),
	}
}
