package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/cartsync/api/controllers"
	"github.com/angelmondragon/cartsync/api/controllers/cart/dto"
	"github.com/angelmondragon/cartsync/api/responses"
	"github.com/angelmondragon/cartsync/api/validators"
	cartsvc "github.com/angelmondragon/cartsync/internal/cart"
	"github.com/angelmondragon/cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
)

// orderItemEndpoint is where lines already on an order are changed.
const orderItemEndpoint = "/api/v1/outlets/{outletRef}/order/items/{itemId}"

// Fetch returns the session cart.
func Fetch(carts controllers.CartProvider, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := controllers.SessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewCart(store, currency))
	}
}

// AddItem merges the configuration into an existing line or appends a new one.
func AddItem(carts controllers.CartProvider, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := controllers.SessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload dto.AddItemRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := store.AddItem(r.Context(), toLineItem(payload)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, NewCart(store, currency))
	}
}

// UpdateItem patches a line in place. A quantity of zero or less removes it.
// Lines already submitted to an order are rejected.
func UpdateItem(carts controllers.CartProvider, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := controllers.SessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload dto.UpdateItemRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := localItemID(r, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := store.UpdateItem(r.Context(), itemID, toItemPatch(payload)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewCart(store, currency))
	}
}

func RemoveItem(carts controllers.CartProvider, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := controllers.SessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := localItemID(r, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.RemoveItem(r.Context(), itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewCart(store, currency))
	}
}

func Clear(carts controllers.CartProvider, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := controllers.SessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewCart(store, currency))
	}
}

// localItemID returns the path's item id unless that line is already on an
// order. Unknown ids pass through so the store reports them as not found.
func localItemID(r *http.Request, store *cartsvc.Store) (string, error) {
	itemID := chi.URLParam(r, "itemId")
	item, ok := store.Item(itemID)
	if ok && item.IsSynced() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "item is already on the order").WithDetails(map[string]any{
			"item_id":  itemID,
			"endpoint": orderItemEndpoint,
		})
	}
	return itemID, nil
}
