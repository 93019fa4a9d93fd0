package vouchers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vouchersvc "github.com/angelmondragon/cartsync/internal/vouchers"
	"github.com/angelmondragon/cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
)

type stubService struct {
	vouchersvc.Service
	byID    map[string]vouchersvc.Voucher
	created []vouchersvc.Voucher
}

func (s *stubService) Check(_ context.Context, id string, subtotal int64) (*vouchersvc.Voucher, vouchersvc.Validation, error) {
	v, ok := s.byID[id]
	if !ok {
		return nil, vouchersvc.Validation{}, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	}
	return &v, vouchersvc.Validate(&v, subtotal), nil
}

func (s *stubService) LookupByCode(_ context.Context, code string) (*vouchersvc.Voucher, error) {
	for _, v := range s.byID {
		if strings.EqualFold(v.Code, code) {
			return &v, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
}

func (s *stubService) Create(_ context.Context, v vouchersvc.Voucher) (vouchersvc.Voucher, error) {
	if err := v.Validate(); err != nil {
		return vouchersvc.Voucher{}, err
	}
	v.ID = "v-new"
	s.created = append(s.created, v)
	return v, nil
}

func newRouter(svc vouchersvc.Service) http.Handler {
	logg := logger.Nop()
	r := chi.NewRouter()
	r.Post("/vouchers", Create(svc, logg))
	r.Post("/vouchers/validate", Validate(svc, logg))
	r.Get("/vouchers/code/{code}", FetchByCode(svc, logg))
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestValidateReportsMinimumNotMet(t *testing.T) {
	minTx := int64(100000)
	svc := &stubService{byID: map[string]vouchersvc.Voucher{
		"v1": {ID: "v1", Code: "BIG", Type: enums.VoucherTypeFixed, Value: 5000, MinTransaction: &minTx, IsActive: true},
	}}
	h := newRouter(svc)

	w := serve(h, http.MethodPost, "/vouchers/validate", `{"voucher_id":"v1","subtotal":64000}`)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data validateResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.False(t, envelope.Data.Validation.CanApply)
	assert.Equal(t, vouchersvc.MinimumNotMetReason(minTx), envelope.Data.Validation.Reason)

	w = serve(h, http.MethodPost, "/vouchers/validate", `{"voucher_id":"missing","subtotal":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(h, http.MethodPost, "/vouchers/validate", `{"subtotal":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFetchByCode(t *testing.T) {
	svc := &stubService{byID: map[string]vouchersvc.Voucher{
		"v1": {ID: "v1", Code: "HALF", Type: enums.VoucherTypePercentage, Value: 50, IsActive: true},
	}}
	h := newRouter(svc)

	w := serve(h, http.MethodGet, "/vouchers/code/half", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"v1"`)

	w = serve(h, http.MethodGet, "/vouchers/code/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateVoucher(t *testing.T) {
	svc := &stubService{}
	h := newRouter(svc)

	w := serve(h, http.MethodPost, "/vouchers", `{"code":"spring","type":"percentage","value":20,"max_discount":10000}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.created, 1)
	assert.True(t, svc.created[0].IsActive, "vouchers are active unless stated otherwise")
	assert.Equal(t, enums.VoucherTypePercentage, svc.created[0].Type)

	w = serve(h, http.MethodPost, "/vouchers", `{"code":"over","type":"percentage","value":150}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(h, http.MethodPost, "/vouchers", `{"code":"bad","type":"bogus","value":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
