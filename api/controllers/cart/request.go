package cart

import (
	"github.com/angelmondragon/cartsync/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/cartsync/internal/cart"
)

func toLineItem(payload dto.AddItemRequest) cartsvc.LineItem {
	return cartsvc.LineItem{
		ProductRef:  payload.ProductRef,
		Name:        payload.Name,
		UnitPrice:   payload.UnitPrice,
		Quantity:    payload.Quantity,
		Options:     payload.Options,
		VariantRefs: payload.VariantRefs,
		Size:        payload.Size,
		IceLevel:    payload.IceLevel,
		Note:        payload.Note,
		ImageRef:    payload.ImageRef,
	}
}

func toItemPatch(payload dto.UpdateItemRequest) cartsvc.ItemPatch {
	return cartsvc.ItemPatch{
		Name:        payload.Name,
		UnitPrice:   payload.UnitPrice,
		Quantity:    payload.Quantity,
		Options:     payload.Options,
		VariantRefs: payload.VariantRefs,
		Size:        payload.Size,
		IceLevel:    payload.IceLevel,
		Note:        payload.Note,
		ImageRef:    payload.ImageRef,
	}
}
