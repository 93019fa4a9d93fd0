package checkout

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/cartsync/api/controllers"
	cartcontrollers "github.com/angelmondragon/cartsync/api/controllers/cart"
	"github.com/angelmondragon/cartsync/api/controllers/cart/dto"
	"github.com/angelmondragon/cartsync/api/responses"
	"github.com/angelmondragon/cartsync/api/validators"
	cartsvc "github.com/angelmondragon/cartsync/internal/cart"
	checkoutsvc "github.com/angelmondragon/cartsync/internal/checkout"
	"github.com/angelmondragon/cartsync/internal/orders"
	"github.com/angelmondragon/cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
)

// Deps groups the services behind the checkout endpoints.
type Deps struct {
	Carts    controllers.CartProvider
	Orders   orders.Service
	Checkout checkoutsvc.Service
	Currency enums.Currency
	Logger   *logger.Logger
}

// View is the checkout page payload: the reconciled cart, its order and totals.
type View struct {
	Order   *orders.Order       `json:"order,omitempty"`
	Cart    dto.Cart            `json:"cart"`
	Summary checkoutsvc.Summary `json:"summary"`
}

type submitRequest struct {
	VoucherID string `json:"voucher_id" validate:"omitempty,max=64"`
}

type quantityRequest struct {
	Delta int `json:"delta" validate:"required,ne=0"`
}

// Enter reconciles the cart with the outlet's order and returns the summary.
func Enter(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, outletRef, err := resolve(r, deps)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}

		order, err := deps.Orders.EnterCheckout(r.Context(), store, outletRef, false)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}
		writeView(w, r, deps, store, order, voucherIDFromQuery(r))
	}
}

// Order returns the outlet's current order, served from cache when fresh.
func Order(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, outletRef, err := resolve(r, deps)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}

		order, err := deps.Orders.GetOrder(r.Context(), store, outletRef)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}
		if order == nil {
			responses.WriteError(r.Context(), deps.Logger, w, pkgerrors.New(pkgerrors.CodeNotFound, "no open order for outlet"))
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Submit pushes every local line to the outlet's order and re-enters checkout.
func Submit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, outletRef, err := resolve(r, deps)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}

		var payload submitRequest
		if err := validators.DecodeOptionalJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}
		voucherID := strings.TrimSpace(payload.VoucherID)

		// unknown vouchers fail before anything reaches the backend
		if _, err := deps.Checkout.Summary(r.Context(), store.Items(), voucherID); err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}

		order, err := deps.Orders.SubmitCart(r.Context(), store, outletRef)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}
		// the order vanished between creating lines and reading it back
		if order == nil {
			responses.WriteError(r.Context(), deps.Logger, w, pkgerrors.New(pkgerrors.CodeOrderGone, "order no longer exists").WithDetails(map[string]any{
				"redirect": orders.RedirectCatalog,
			}))
			return
		}
		writeViewStatus(w, r, deps, store, order, voucherID, http.StatusCreated)
	}
}

// UpdateQuantity adjusts a synced line by delta after the backend confirms it.
func UpdateQuantity(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, outletRef, err := resolve(r, deps)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}

		var payload quantityRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}

		if err := deps.Orders.UpdateItemQuantity(r.Context(), store, outletRef, chi.URLParam(r, "itemId"), payload.Delta); err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}
		writeView(w, r, deps, store, nil, voucherIDFromQuery(r))
	}
}

// DeleteItem removes a line, dropping the whole order when it was the last one.
func DeleteItem(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, outletRef, err := resolve(r, deps)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}

		if err := deps.Orders.DeleteItem(r.Context(), store, outletRef, chi.URLParam(r, "itemId")); err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}
		writeView(w, r, deps, store, nil, voucherIDFromQuery(r))
	}
}

func resolve(r *http.Request, deps Deps) (*cartsvc.Store, string, error) {
	if deps.Orders == nil || deps.Checkout == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeInternal, "checkout services unavailable")
	}
	outletRef := strings.TrimSpace(chi.URLParam(r, "outletRef"))
	if outletRef == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "outlet is required")
	}
	store, err := controllers.SessionCart(r, deps.Carts)
	if err != nil {
		return nil, "", err
	}
	return store, outletRef, nil
}

func writeView(w http.ResponseWriter, r *http.Request, deps Deps, store *cartsvc.Store, order *orders.Order, voucherID string) {
	writeViewStatus(w, r, deps, store, order, voucherID, http.StatusOK)
}

func writeViewStatus(w http.ResponseWriter, r *http.Request, deps Deps, store *cartsvc.Store, order *orders.Order, voucherID string, status int) {
	summary, err := deps.Checkout.Summary(r.Context(), store.Items(), voucherID)
	if err != nil {
		responses.WriteError(r.Context(), deps.Logger, w, err)
		return
	}
	responses.WriteSuccessStatus(w, status, View{
		Order:   order,
		Cart:    cartcontrollers.NewCart(store, deps.Currency),
		Summary: summary,
	})
}

func voucherIDFromQuery(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("voucher_id"))
}
