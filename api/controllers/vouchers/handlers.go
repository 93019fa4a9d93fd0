package vouchers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/cartsync/api/responses"
	"github.com/angelmondragon/cartsync/api/validators"
	vouchersvc "github.com/angelmondragon/cartsync/internal/vouchers"
	"github.com/angelmondragon/cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
)

type validateRequest struct {
	VoucherID string `json:"voucher_id" validate:"required,max=64"`
	Subtotal  int64  `json:"subtotal" validate:"min=0"`
}

type validateResponse struct {
	Voucher    *vouchersvc.Voucher   `json:"voucher"`
	Validation vouchersvc.Validation `json:"validation"`
}

type createRequest struct {
	Code           string `json:"code" validate:"required,max=64"`
	Type           string `json:"type" validate:"required,oneof=percentage fixed"`
	Value          int64  `json:"value" validate:"required,min=1"`
	MaxDiscount    *int64 `json:"max_discount" validate:"omitempty,min=0"`
	MinTransaction *int64 `json:"min_transaction" validate:"omitempty,min=0"`
	IsActive       *bool  `json:"is_active"`
}

// Validate reports whether a voucher can be applied to the given subtotal.
func Validate(svc vouchersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}

		var payload validateRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		voucher, validation, err := svc.Check(r.Context(), payload.VoucherID, payload.Subtotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, validateResponse{Voucher: voucher, Validation: validation})
	}
}

// FetchByCode resolves a voucher from the code a shopper typed.
func FetchByCode(svc vouchersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}

		voucher, err := svc.LookupByCode(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, voucher)
	}
}

func Create(svc vouchersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}

		var payload createRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		voucherType, err := enums.ParseVoucherType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid voucher type"))
			return
		}

		active := true
		if payload.IsActive != nil {
			active = *payload.IsActive
		}

		created, err := svc.Create(r.Context(), vouchersvc.Voucher{
			Code:           strings.TrimSpace(payload.Code),
			Type:           voucherType,
			Value:          payload.Value,
			MaxDiscount:    payload.MaxDiscount,
			MinTransaction: payload.MinTransaction,
			IsActive:       active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}
