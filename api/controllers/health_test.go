package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/cartsync/pkg/config"
	"github.com/angelmondragon/cartsync/pkg/logger"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	w := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": ok, "redis": nil}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get(envHeader); got != "test" {
		t.Fatalf("expected env header %q, got %q", "test", got)
	}
	if !strings.Contains(w.Body.String(), `"db":"ok"`) {
		t.Fatalf("expected db status in body, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": ok, "redis": down}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "redis") {
		t.Fatalf("expected failing dependency in body, got %s", w.Body.String())
	}
}

func TestHealthLive(t *testing.T) {
	w := httptest.NewRecorder()
	HealthLive(&config.Config{App: config.AppConfig{Env: "dev"}}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
