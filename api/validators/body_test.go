package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
)

type lineRequest struct {
	ProductRef string   `json:"product_ref" validate:"required,notblank"`
	Quantity   int      `json:"quantity" validate:"required,min=1"`
	Options    []string `json:"options" validate:"omitempty,dive,notblank"`
	Kind       string   `json:"kind" validate:"omitempty,oneof=hot iced"`
}

func decodeString(t *testing.T, body string, optional bool) (lineRequest, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest lineRequest
	if optional {
		return dest, DecodeOptionalJSONBody(httptest.NewRecorder(), req, &dest)
	}
	return dest, DecodeJSONBody(httptest.NewRecorder(), req, &dest)
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", typed.Code())
	}
	out, _ := typed.Details().(map[string]string)
	return out
}

func TestDecodeJSONBodyValid(t *testing.T) {
	got, err := decodeString(t, `{"product_ref":"p-1","quantity":2,"options":["oat"]}`, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ProductRef != "p-1" {
		t.Fatalf("unexpected product ref %q", got.ProductRef)
	}
	if len(got.Options) != 1 || got.Options[0] != "oat" {
		t.Fatalf("unexpected options %v", got.Options)
	}
}

func TestDecodeJSONBodyFieldErrors(t *testing.T) {
	_, err := decodeString(t, `{"product_ref":"  ","quantity":0,"options":["oat",""],"kind":"warm"}`, false)
	d := details(t, err)

	want := map[string]string{
		"product_ref": "is required",
		"quantity":    "is required",
		"options[1]":  "is required",
		"kind":        "must be one of [hot iced]",
	}
	for field, msg := range want {
		if d[field] != msg {
			t.Fatalf("field %s: expected %q got %q", field, msg, d[field])
		}
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	for name, body := range map[string]string{
		"empty":          "",
		"unknown field":  `{"product_ref":"p","quantity":1,"extra":true}`,
		"trailing value": `{"product_ref":"p","quantity":1}{}`,
		"not json":       `product_ref=p`,
	} {
		_, err := decodeString(t, body, false)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestDecodeJSONBodyTooLarge(t *testing.T) {
	body := `{"product_ref":"` + strings.Repeat("a", int(MaxBodyBytes)) + `","quantity":1}`
	_, err := decodeString(t, body, false)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected too large error, got %v", err)
	}
}

type optionalRequest struct {
	VoucherID string `json:"voucher_id" validate:"omitempty,max=4"`
}

func TestDecodeOptionalJSONBodyAcceptsEmpty(t *testing.T) {
	var dest optionalRequest
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if err := DecodeOptionalJSONBody(httptest.NewRecorder(), req, &dest); err != nil {
		t.Fatalf("empty body should be accepted: %v", err)
	}
	if dest.VoucherID != "" {
		t.Fatalf("expected empty voucher id, got %q", dest.VoucherID)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"voucher_id":"toolong"}`))
	err := DecodeOptionalJSONBody(httptest.NewRecorder(), req, &dest)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
