package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/cartsync/api/middleware"
	"github.com/angelmondragon/cartsync/internal/cart"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
)

// CartProvider hands out the live cart store for a session.
type CartProvider interface {
	Get(ctx context.Context, sessionID string) (*cart.Store, error)
}

// SessionCart resolves the cart owned by the request's session.
func SessionCart(r *http.Request, carts CartProvider) (*cart.Store, error) {
	if carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart provider unavailable")
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart session missing")
	}
	return carts.Get(r.Context(), sessionID)
}
