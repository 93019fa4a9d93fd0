package orders

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/cartsync/internal/cart"
	"github.com/angelmondragon/cartsync/internal/migration"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
	"github.com/angelmondragon/cartsync/pkg/metrics"
)

// RedirectCatalog is where a client goes after its orphaned cart was cleared.
const RedirectCatalog = "/catalog"

const (
	opFetchOrder   = "fetch_order"
	opCreateLine   = "create_line"
	opUpdateLine   = "update_line"
	opDeleteOrder  = "delete_order"
	opFetchProduct = "fetch_product"
)

// ServiceParams groups dependencies for the reconciliation service.
type ServiceParams struct {
	Gateway Gateway
	Cache   *Cache
	Metrics *metrics.ReconcileMetrics
	Logger  *logger.Logger
}

// Service keeps session carts consistent with the remote order. The remote
// order always wins: fetched lines replace the cart wholesale.
type Service interface {
	EnterCheckout(ctx context.Context, store *cart.Store, outletRef string, submitting bool) (*Order, error)
	SyncCart(ctx context.Context, store *cart.Store, order *Order) error
	GetOrder(ctx context.Context, store *cart.Store, outletRef string) (*Order, error)
	UpdateItemQuantity(ctx context.Context, store *cart.Store, outletRef, itemID string, delta int) error
	DeleteItem(ctx context.Context, store *cart.Store, outletRef, itemID string) error
	SubmitCart(ctx context.Context, store *cart.Store, outletRef string) (*Order, error)
}

type service struct {
	gateway Gateway
	cache   *Cache
	metrics *metrics.ReconcileMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders gateway is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		gateway: params.Gateway,
		cache:   params.Cache,
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

// EnterCheckout fetches the order bypassing the cache and syncs the cart to
// it. When the order is gone but the cart still holds lines, the cart is
// cleared and ORDER_GONE is returned, unless a submission is in flight.
func (s *service) EnterCheckout(ctx context.Context, store *cart.Store, outletRef string, submitting bool) (*Order, error) {
	ref := s.ref(store, outletRef)
	return s.enterCheckout(s.logCtx(ctx, ref), store, ref, submitting)
}

func (s *service) enterCheckout(ctx context.Context, store *cart.Store, ref OrderRef, submitting bool) (*Order, error) {
	token := store.BeginFetch()
	order, err := s.fetchOrder(ctx, ref, true)
	if err != nil {
		return nil, err
	}

	if order == nil && store.Len() > 0 {
		if submitting {
			return nil, nil
		}
		if err := store.Clear(ctx); err != nil {
			return nil, err
		}
		s.metrics.IncSync(metrics.SyncOrphaned)
		s.logg.Warn(ctx, "orders.orphaned_cart_cleared")
		return nil, pkgerrors.New(pkgerrors.CodeOrderGone, "order no longer exists").WithDetails(map[string]any{
			"redirect": RedirectCatalog,
		})
	}

	if err := s.apply(ctx, store, token, order); err != nil {
		return nil, err
	}
	return order, nil
}

// SyncCart replaces the cart with order's lines. A nil order empties the cart.
func (s *service) SyncCart(ctx context.Context, store *cart.Store, order *Order) error {
	return s.apply(ctx, store, store.BeginFetch(), order)
}

// GetOrder returns the order, served from the cache when possible, and syncs the cart.
func (s *service) GetOrder(ctx context.Context, store *cart.Store, outletRef string) (*Order, error) {
	ref := s.ref(store, outletRef)
	ctx = s.logCtx(ctx, ref)

	token := store.BeginFetch()
	order, err := s.fetchOrder(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, store, token, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateItemQuantity changes a synced line by delta. The backend confirms
// before the cart changes; the order is then refetched for server totals.
// A resulting quantity <= 0 deletes the line.
func (s *service) UpdateItemQuantity(ctx context.Context, store *cart.Store, outletRef, itemID string, delta int) error {
	ref := s.ref(store, outletRef)
	ctx = s.logCtx(ctx, ref)

	item, ok := store.Item(itemID)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").WithDetails(map[string]any{"item_id": itemID})
	}
	if !item.IsSynced() {
		return pkgerrors.New(pkgerrors.CodeValidation, "item is not part of the order yet").WithDetails(map[string]any{"item_id": itemID})
	}

	next := item.Quantity + delta
	if next <= 0 {
		return s.deleteLine(ctx, store, ref, item)
	}

	if err := s.call(opUpdateLine, func() error {
		return s.gateway.UpdateLineQuantity(ctx, ref, *item.OrderLineRef, next)
	}); err != nil {
		s.resyncAfterFailure(ctx, store, ref, err)
		return err
	}
	s.invalidate(ctx, ref)

	if err := store.UpdateQuantity(ctx, itemID, next); err != nil {
		s.refetch(ctx, store, ref)
		return err
	}
	s.refetch(ctx, store, ref)
	return nil
}

// DeleteItem removes a line. Deleting the order's last line deletes the whole
// remote order; otherwise the line's quantity is set to 0 remotely. The order
// is refetched afterwards whether or not the backend call succeeded. Lines not
// yet submitted stay in the cart either way.
func (s *service) DeleteItem(ctx context.Context, store *cart.Store, outletRef, itemID string) error {
	ref := s.ref(store, outletRef)
	ctx = s.logCtx(ctx, ref)

	item, ok := store.Item(itemID)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").WithDetails(map[string]any{"item_id": itemID})
	}
	return s.deleteLine(ctx, store, ref, item)
}

func (s *service) deleteLine(ctx context.Context, store *cart.Store, ref OrderRef, item cart.LineItem) error {
	if !item.IsSynced() {
		return store.RemoveItem(ctx, item.ID)
	}

	defer s.resync(ctx, store, ref, true)

	order, err := s.fetchOrder(ctx, ref, true)
	if err != nil {
		return err
	}

	if isLastLine(order, *item.OrderLineRef) {
		if order != nil {
			s.logg.Info(s.logg.WithOrderCode(ctx, order.Code), "orders.delete_last_line")
			if err := s.call(opDeleteOrder, func() error {
				return s.gateway.DeleteOrder(ctx, ref, order.Code)
			}); err != nil {
				return err
			}
		}
		s.invalidate(ctx, ref)
		_, err := store.Retain(ctx, func(local cart.LineItem) bool { return !local.IsSynced() })
		return err
	}

	if err := s.call(opUpdateLine, func() error {
		return s.gateway.UpdateLineQuantity(ctx, ref, *item.OrderLineRef, 0)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, ref)
	return store.RemoveItem(ctx, item.ID)
}

// isLastLine reports whether lineID is the only live line of order.
func isLastLine(order *Order, lineID string) bool {
	if order == nil {
		return true
	}
	for _, line := range order.Lines {
		if line.Quantity > 0 && line.ID != lineID {
			return false
		}
	}
	return true
}

// SubmitCart sends every unsynced line to the backend and syncs the cart to
// the resulting order. Legacy lines are dropped first; a cart left empty
// fails with "no valid items".
func (s *service) SubmitCart(ctx context.Context, store *cart.Store, outletRef string) (*Order, error) {
	ref := s.ref(store, outletRef)
	ctx = s.logCtx(ctx, ref)

	kept, removed, err := migration.RequireValidItems(store.Items())
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		if _, err := store.Retain(ctx, func(item cart.LineItem) bool { return !migration.IsLegacyItem(item) }); err != nil {
			return nil, err
		}
		s.logg.Warn(s.logg.WithField(ctx, "removed", removed), "orders.legacy_items_dropped")
	}

	products := map[string]*Product{}
	for _, item := range kept {
		if item.IsSynced() {
			continue
		}
		variants, err := s.resolveVariants(ctx, ref, item, products)
		if err != nil {
			return nil, err
		}

		var created CreateLineResult
		if err := s.call(opCreateLine, func() error {
			var callErr error
			created, callErr = s.gateway.CreateOrderLine(ctx, ref, CreateLineInput{
				ProductRef:  item.ProductRef,
				VariantRefs: variants,
				Quantity:    item.Quantity,
				Note:        item.Note,
			})
			return callErr
		}); err != nil {
			s.invalidate(ctx, ref)
			s.refetch(ctx, store, ref)
			return nil, err
		}

		lineRef := created.LineID
		if _, err := store.UpdateItem(ctx, item.ID, cart.ItemPatch{OrderLineRef: &lineRef, VariantRefs: variants}); err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, ref)

	return s.enterCheckout(ctx, store, ref, true)
}

// resolveVariants maps option labels to variant refs for lines stored without them.
func (s *service) resolveVariants(ctx context.Context, ref OrderRef, item cart.LineItem, cache map[string]*Product) ([]string, error) {
	if len(item.VariantRefs) > 0 || len(item.Options) == 0 {
		return item.VariantRefs, nil
	}

	product, ok := cache[item.ProductRef]
	if !ok {
		if err := s.call(opFetchProduct, func() error {
			var callErr error
			product, callErr = s.gateway.FetchProduct(ctx, ref, item.ProductRef)
			return callErr
		}); err != nil {
			return nil, err
		}
		cache[item.ProductRef] = product
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "product not found").WithDetails(map[string]any{"product_ref": item.ProductRef})
	}

	refs := make([]string, 0, len(item.Options))
	var missing []string
	for _, option := range item.Options {
		found := false
		for _, variant := range product.Variants {
			if strings.EqualFold(strings.TrimSpace(variant.Name), strings.TrimSpace(option)) {
				refs = append(refs, variant.Ref)
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, option)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "cart item options no longer exist").WithDetails(map[string]any{
			"item_id": item.ID,
			"options": missing,
		})
	}
	return refs, nil
}

func (s *service) apply(ctx context.Context, store *cart.Store, token cart.FetchToken, order *Order) error {
	return s.applyOrder(ctx, store, token, order, false)
}

// applyOrder replaces the cart with order's lines. keepLocal carries lines
// not yet submitted over to the new cart.
func (s *service) applyOrder(ctx context.Context, store *cart.Store, token cart.FetchToken, order *Order, keepLocal bool) error {
	local := store.Items()
	items := linesToItems(order, local)
	if keepLocal {
		for _, item := range local {
			if !item.IsSynced() {
				items = append(items, item)
			}
		}
	}

	applied, err := store.ReplaceFromRemote(ctx, token, items)
	if err != nil {
		return err
	}
	switch {
	case !applied:
		s.metrics.IncSync(metrics.SyncStale)
	case order == nil:
		s.metrics.IncSync(metrics.SyncEmptied)
	default:
		s.metrics.IncSync(metrics.SyncApplied)
	}
	return nil
}

// refetch pulls the order and syncs the cart. Failures are logged only.
func (s *service) refetch(ctx context.Context, store *cart.Store, ref OrderRef) {
	s.resync(ctx, store, ref, false)
}

func (s *service) resync(ctx context.Context, store *cart.Store, ref OrderRef, keepLocal bool) {
	token := store.BeginFetch()
	order, err := s.fetchOrder(ctx, ref, true)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "orders.refetch_failed")
		return
	}
	if err := s.applyOrder(ctx, store, token, order, keepLocal); err != nil {
		s.logg.Error(ctx, "orders.refetch_apply_failed", err)
	}
}

// resyncAfterFailure refetches after a rejected change so the cart reflects the server.
func (s *service) resyncAfterFailure(ctx context.Context, store *cart.Store, ref OrderRef, cause error) {
	s.invalidate(ctx, ref)
	if pkgerrors.HasCode(cause, pkgerrors.CodeStateConflict) || pkgerrors.IsRetryable(cause) {
		s.refetch(ctx, store, ref)
	}
}

func (s *service) fetchOrder(ctx context.Context, ref OrderRef, force bool) (*Order, error) {
	if !force {
		cached, ok, err := s.cache.Get(ctx, ref)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "orders.cache_read_failed")
		}
		if ok {
			return cached, nil
		}
	}

	var order *Order
	if err := s.call(opFetchOrder, func() error {
		var callErr error
		order, callErr = s.gateway.FetchOrder(ctx, ref)
		return callErr
	}); err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, ref, order); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "orders.cache_write_failed")
	}
	return order, nil
}

func (s *service) invalidate(ctx context.Context, ref OrderRef) {
	if err := s.cache.Invalidate(ctx, ref); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "orders.cache_invalidate_failed")
	}
}

// call times a gateway call and counts failures by error code.
func (s *service) call(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveGateway(operation, time.Since(start))
	if err != nil {
		code := pkgerrors.CodeDependency
		if typed := pkgerrors.As(err); typed != nil {
			code = typed.Code()
		} else {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, operation+" failed")
		}
		s.metrics.IncGatewayFailure(operation, string(code))
	}
	return err
}

func (s *service) ref(store *cart.Store, outletRef string) OrderRef {
	return OrderRef{OutletRef: strings.TrimSpace(outletRef), SessionID: store.SessionID()}
}

func (s *service) logCtx(ctx context.Context, ref OrderRef) context.Context {
	ctx = s.logg.WithSessionID(ctx, ref.SessionID)
	return s.logg.WithOutletRef(ctx, ref.OutletRef)
}

// linesToItems converts order lines into cart lines. Local ids and the
// size/ice fields the backend does not echo are kept for lines already linked.
func linesToItems(order *Order, local []cart.LineItem) []cart.LineItem {
	if order == nil {
		return nil
	}
	byRef := make(map[string]cart.LineItem, len(local))
	for _, item := range local {
		if item.IsSynced() {
			byRef[*item.OrderLineRef] = item
		}
	}

	items := make([]cart.LineItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		if line.Quantity <= 0 {
			continue
		}
		lineRef := line.ID
		item := cart.LineItem{
			ProductRef:   line.ProductRef,
			Name:         line.Name,
			UnitPrice:    line.UnitPrice(),
			Quantity:     line.Quantity,
			Options:      line.Options,
			VariantRefs:  line.VariantRefs,
			Note:         line.Note,
			OrderLineRef: &lineRef,
			ImageRef:     line.ImageRef,
		}
		if prev, ok := byRef[line.ID]; ok {
			item.ID = prev.ID
			item.Size = prev.Size
			item.IceLevel = prev.IceLevel
			if item.ImageRef == "" {
				item.ImageRef = prev.ImageRef
			}
		}
		items = append(items, item)
	}
	return items
}
