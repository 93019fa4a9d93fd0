package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	sessionHeader               = "X-Cart-Session"
	requestIDHeader             = "X-Request-Id"
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("orders api base url is required")

// HTTPGateway talks JSON to the ordering backend.
type HTTPGateway struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	requestID  func(context.Context) string
}

// GatewayOption configures optional gateway behavior.
type GatewayOption func(*HTTPGateway)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithAPIKey sets the bearer token sent on every call.
func WithAPIKey(key string) GatewayOption {
	return func(g *HTTPGateway) {
		g.apiKey = strings.TrimSpace(key)
	}
}

// WithTimeout sets the client timeout when no custom client is supplied.
func WithTimeout(timeout time.Duration) GatewayOption {
	return func(g *HTTPGateway) {
		if timeout > 0 {
			g.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithRequestID forwards the id returned by fn on every outbound call.
func WithRequestID(fn func(context.Context) string) GatewayOption {
	return func(g *HTTPGateway) {
		g.requestID = fn
	}
}

func NewHTTPGateway(baseURL string, opts ...GatewayOption) (*HTTPGateway, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	g := &HTTPGateway{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func (g *HTTPGateway) FetchOrder(ctx context.Context, ref OrderRef) (*Order, error) {
	var order Order
	found, err := g.do(ctx, ref, http.MethodGet, g.outletURL(ref, "order"), nil, &order, true)
	if err != nil || !found {
		return nil, err
	}
	return &order, nil
}

func (g *HTTPGateway) CreateOrderLine(ctx context.Context, ref OrderRef, input CreateLineInput) (CreateLineResult, error) {
	if input.VariantRefs == nil {
		input.VariantRefs = []string{}
	}
	var out CreateLineResult
	if _, err := g.do(ctx, ref, http.MethodPost, g.outletURL(ref, "order", "lines"), input, &out, false); err != nil {
		return CreateLineResult{}, err
	}
	return out, nil
}

func (g *HTTPGateway) UpdateLineQuantity(ctx context.Context, ref OrderRef, lineID string, quantity int) error {
	if strings.TrimSpace(lineID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order line id is required")
	}
	body := map[string]int{"quantity": quantity}
	_, err := g.do(ctx, ref, http.MethodPatch, g.outletURL(ref, "order", "lines", lineID), body, nil, false)
	return err
}

func (g *HTTPGateway) DeleteOrder(ctx context.Context, ref OrderRef, orderCode string) error {
	if strings.TrimSpace(orderCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order code is required")
	}
	_, err := g.do(ctx, ref, http.MethodDelete, g.outletURL(ref, "order", orderCode), nil, nil, false)
	return err
}

func (g *HTTPGateway) FetchProduct(ctx context.Context, ref OrderRef, productRef string) (*Product, error) {
	if strings.TrimSpace(productRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product reference is required")
	}
	var product Product
	if _, err := g.do(ctx, ref, http.MethodGet, g.outletURL(ref, "products", productRef), nil, &product, false); err != nil {
		return nil, err
	}
	return &product, nil
}

// do executes one call. With allowMissing a 404 reports (false, nil).
func (g *HTTPGateway) do(ctx context.Context, ref OrderRef, method, target string, body, dest any, allowMissing bool) (bool, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal orders request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build orders request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	if ref.SessionID != "" {
		req.Header.Set(sessionHeader, ref.SessionID)
	}
	if g.requestID != nil {
		if id := g.requestID(ctx); id != "" {
			req.Header.Set(requestIDHeader, id)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute orders request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound && allowMissing {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return false, classifyStatus(resp.StatusCode, strings.TrimSpace(string(msg)), method)
	}

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode orders response")
	}
	return true, nil
}

func classifyStatus(status int, body, method string) error {
	cause := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity || status == http.StatusGone:
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, cause, "order rejected the change")
	case status == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, "order resource not found")
	case status == http.StatusBadRequest:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "orders request invalid")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, strings.ToLower(method)+" orders request failed")
	}
}

func (g *HTTPGateway) outletURL(ref OrderRef, parts ...string) string {
	segments := make([]string, 0, len(parts)+2)
	segments = append(segments, "outlets", url.PathEscape(ref.OutletRef))
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return g.baseURL + "/" + strings.Join(segments, "/")
}
