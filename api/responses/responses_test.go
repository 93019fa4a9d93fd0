package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
	"github.com/angelmondragon/cartsync/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	data, ok := body.Data.(map[string]any)
	if !ok || data["hello"] != "world" {
		t.Fatalf("unexpected data %#v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), logger.Nop(), w, err)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decodeError(t, w)
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "bad input" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
	if body.Error.Details == nil {
		t.Fatalf("expected details")
	}
}

func TestWriteErrorOrderGoneCarriesRedirect(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeOrderGone, "order no longer exists").WithDetails(map[string]any{"redirect": "/catalog"})
	WriteError(context.Background(), nil, w, err)

	if w.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", w.Code)
	}
	details, ok := decodeError(t, w).Error.Details.(map[string]any)
	if !ok || details["redirect"] != "/catalog" {
		t.Fatalf("expected catalog redirect, got %#v", details)
	}
}

func TestWriteErrorEchoesRequestIDAndRetryable(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-Id", "req-7")
	WriteError(context.Background(), logger.Nop(), w, pkgerrors.New(pkgerrors.CodeDependency, "orders api down"))

	meta := pkgerrors.MetadataFor(pkgerrors.CodeDependency)
	body := decodeError(t, w)
	if body.Error.RequestID != "req-7" {
		t.Fatalf("expected request id req-7, got %q", body.Error.RequestID)
	}
	if body.Error.Retryable != meta.Retryable {
		t.Fatalf("expected retryable %v, got %v", meta.Retryable, body.Error.Retryable)
	}
	if w.Code != meta.HTTPStatus {
		t.Fatalf("expected status %d, got %d", meta.HTTPStatus, w.Code)
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), logger.Nop(), w, errors.New("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := decodeError(t, w)
	if body.Error.Message != "internal server error" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
	if body.Error.Details != nil {
		t.Fatalf("details must not leak, got %#v", body.Error.Details)
	}
}
