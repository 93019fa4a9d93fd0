package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/angelmondragon/cartsync/internal/cart"
	"github.com/angelmondragon/cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
	"github.com/angelmondragon/cartsync/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOutlet = "outlet-1"

type updateCall struct {
	LineID   string
	Quantity int
}

type fakeGateway struct {
	mu       sync.Mutex
	order    *Order
	products map[string]*Product
	nextLine int

	fetchErr  error
	updateErr error
	deleteErr error
	createErr error

	fetches        int
	productFetches int
	updates        []updateCall
	deletes        []string
	creates        []CreateLineInput
}

func (f *fakeGateway) FetchOrder(_ context.Context, _ OrderRef) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.order == nil {
		return nil, nil
	}
	copied := *f.order
	copied.Lines = append([]OrderLine(nil), f.order.Lines...)
	return &copied, nil
}

func (f *fakeGateway) CreateOrderLine(_ context.Context, _ OrderRef, input CreateLineInput) (CreateLineResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, input)
	if f.createErr != nil {
		return CreateLineResult{}, f.createErr
	}
	if f.order == nil {
		f.order = &Order{ID: "order-1", Code: "ORD-1", OutletRef: testOutlet, Status: enums.OrderStatusOpen}
	}
	f.nextLine++
	lineID := fmt.Sprintf("ol-%d", f.nextLine)
	f.order.Lines = append(f.order.Lines, OrderLine{
		ID:              lineID,
		ProductRef:      input.ProductRef,
		Name:            "server " + input.ProductRef,
		PriceCents:      30000,
		ExtraPriceCents: 2000,
		Quantity:        input.Quantity,
		VariantRefs:     input.VariantRefs,
		Note:            input.Note,
	})
	return CreateLineResult{OrderID: f.order.ID, OrderCode: f.order.Code, LineID: lineID}, nil
}

func (f *fakeGateway) UpdateLineQuantity(_ context.Context, _ OrderRef, lineID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{LineID: lineID, Quantity: quantity})
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.order == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no order")
	}
	lines := f.order.Lines[:0]
	for _, line := range f.order.Lines {
		if line.ID == lineID {
			line.Quantity = quantity
		}
		if line.Quantity > 0 {
			lines = append(lines, line)
		}
	}
	f.order.Lines = lines
	return nil
}

func (f *fakeGateway) DeleteOrder(_ context.Context, _ OrderRef, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, code)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.order = nil
	return nil
}

func (f *fakeGateway) FetchProduct(_ context.Context, _ OrderRef, productRef string) (*Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productFetches++
	product, ok := f.products[productRef]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func newTestService(t *testing.T, gw *fakeGateway, cache *Cache) (Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Gateway: gw,
		Cache:   cache,
		Metrics: metrics.NewReconcileMetrics(reg),
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)
	return svc, reg
}

func newLoadedStore(t *testing.T) *cart.Store {
	t.Helper()
	store, err := cart.NewStore("sess-1", cart.NewMemoryPersister(), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Load(context.Background()))
	return store
}

func orderWithLines(lines ...OrderLine) *Order {
	return &Order{ID: "order-1", Code: "ORD-1", OutletRef: testOutlet, Status: enums.OrderStatusOpen, Lines: lines}
}

func remoteLine(id, product string, qty int) OrderLine {
	return OrderLine{ID: id, ProductRef: product, Name: product, PriceCents: 30000, ExtraPriceCents: 2000, Quantity: qty}
}

// syncedStore seeds the store from the gateway's current order.
func syncedStore(t *testing.T, svc Service) *cart.Store {
	t.Helper()
	store := newLoadedStore(t)
	_, err := svc.EnterCheckout(context.Background(), store, testOutlet, false)
	require.NoError(t, err)
	return store
}

func itemForLine(t *testing.T, store *cart.Store, lineID string) cart.LineItem {
	t.Helper()
	for _, item := range store.Items() {
		if item.OrderLineRef != nil && *item.OrderLineRef == lineID {
			return item
		}
	}
	t.Fatalf("no item linked to %s", lineID)
	return cart.LineItem{}
}

func TestSyncCartRemoteWins(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeGateway{}, nil)
	store := newLoadedStore(t)

	_, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-local", Name: "Local", UnitPrice: 100, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, svc.SyncCart(ctx, store, orderWithLines(remoteLine("ol-1", "p-remote", 3))))
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p-remote", items[0].ProductRef)
	assert.Equal(t, int64(32000), items[0].UnitPrice, "price plus extra price")
	assert.Equal(t, 3, items[0].Quantity)

	require.NoError(t, svc.SyncCart(ctx, store, nil))
	assert.Empty(t, store.Items())
}

func TestAddThenSyncEmptyClearsCart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeGateway{}, nil)
	store := newLoadedStore(t)

	_, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-x", Name: "X", UnitPrice: 100, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.SyncCart(ctx, store, orderWithLines()))
	assert.Empty(t, store.Items())
}

func TestSyncKeepsLocalIDsForLinkedLines(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 1))}
	svc, _ := newTestService(t, gw, nil)
	store := syncedStore(t, svc)

	before := itemForLine(t, store, "ol-1")
	gw.order.Lines[0].Quantity = 4
	_, err := svc.EnterCheckout(ctx, store, testOutlet, false)
	require.NoError(t, err)

	after := itemForLine(t, store, "ol-1")
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, 4, after.Quantity)
}

func TestEnterCheckoutOrphanedCart(t *testing.T) {
	ctx := context.Background()
	svc, reg := newTestService(t, &fakeGateway{}, nil)
	store := newLoadedStore(t)
	_, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-1", Name: "Latte", UnitPrice: 100, Quantity: 1})
	require.NoError(t, err)

	_, err = svc.EnterCheckout(ctx, store, testOutlet, true)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len(), "mid-submission carts are left alone")

	_, err = svc.EnterCheckout(ctx, store, testOutlet, false)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeOrderGone, typed.Code())
	assert.Equal(t, map[string]any{"redirect": "/catalog"}, typed.Details())
	assert.Zero(t, store.Len())

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestEnterCheckoutFetchFailureLeavesCart(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{fetchErr: errors.New("connection refused")}
	svc, _ := newTestService(t, gw, nil)
	store := newLoadedStore(t)
	_, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-1", Name: "Latte", UnitPrice: 100, Quantity: 1})
	require.NoError(t, err)

	_, err = svc.EnterCheckout(ctx, store, testOutlet, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, 1, store.Len())
}

func TestDeleteItemOnlyLineDeletesOrder(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 2))}
	svc, _ := newTestService(t, gw, nil)
	store := syncedStore(t, svc)

	item := itemForLine(t, store, "ol-1")
	require.NoError(t, svc.DeleteItem(ctx, store, testOutlet, item.ID))

	assert.Empty(t, store.Items())
	assert.Equal(t, []string{"ORD-1"}, gw.deletes)
	assert.Empty(t, gw.updates, "updateLineQuantity must not be called for the last line")
}

func TestDeleteItemOfManyZeroesLine(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 2), remoteLine("ol-2", "p-2", 1))}
	svc, _ := newTestService(t, gw, nil)
	store := syncedStore(t, svc)
	require.Equal(t, 2, store.Len())

	item := itemForLine(t, store, "ol-1")
	require.NoError(t, svc.DeleteItem(ctx, store, testOutlet, item.ID))

	require.Equal(t, 1, store.Len())
	assert.Equal(t, []updateCall{{LineID: "ol-1", Quantity: 0}}, gw.updates)
	assert.Empty(t, gw.deletes, "deleteOrder must not be called while other lines remain")
}

func TestDeleteItemFailureRefetches(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 2), remoteLine("ol-2", "p-2", 1))}
	svc, _ := newTestService(t, gw, nil)
	store := syncedStore(t, svc)
	fetchesBefore := gw.fetches

	gw.updateErr = pkgerrors.New(pkgerrors.CodeStateConflict, "order finalized")
	item := itemForLine(t, store, "ol-1")
	err := svc.DeleteItem(ctx, store, testOutlet, item.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	assert.Equal(t, 2, store.Len(), "unconfirmed delete is not applied")
	assert.Greater(t, gw.fetches, fetchesBefore, "order refetched after failure")
}

func TestDeleteUnsyncedItemIsLocal(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	svc, _ := newTestService(t, gw, nil)
	store := newLoadedStore(t)
	item, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-1", Name: "Latte", UnitPrice: 100, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(ctx, store, testOutlet, item.ID))
	assert.Zero(t, store.Len())
	assert.Empty(t, gw.updates)
	assert.Empty(t, gw.deletes)
}

func TestDeleteLastSyncedLineKeepsUnsubmittedItems(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 2))}
	svc, _ := newTestService(t, gw, nil)
	store := syncedStore(t, svc)

	pending, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-2", Name: "Mocha", UnitPrice: 100, Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	item := itemForLine(t, store, "ol-1")
	require.NoError(t, svc.DeleteItem(ctx, store, testOutlet, item.ID))

	assert.Equal(t, []string{"ORD-1"}, gw.deletes)
	assert.Empty(t, gw.updates)
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, pending.ID, items[0].ID)
	assert.False(t, items[0].IsSynced())
}

func TestDeleteSyncedLineOfManyKeepsUnsubmittedItems(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 2), remoteLine("ol-2", "p-2", 1))}
	svc, _ := newTestService(t, gw, nil)
	store := syncedStore(t, svc)

	pending, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-3", Name: "Mocha", UnitPrice: 100, Quantity: 1})
	require.NoError(t, err)

	item := itemForLine(t, store, "ol-1")
	require.NoError(t, svc.DeleteItem(ctx, store, testOutlet, item.ID))

	assert.Equal(t, []updateCall{{LineID: "ol-1", Quantity: 0}}, gw.updates)
	assert.Empty(t, gw.deletes)
	require.Equal(t, 2, store.Len())
	_, ok := store.Item(pending.ID)
	assert.True(t, ok, "unsubmitted line survives the refetch")
	itemForLine(t, store, "ol-2")
}

// failingSaves fails the next n saves and then delegates.
type failingSaves struct {
	*cart.MemoryPersister
	n int
}

func (p *failingSaves) Save(ctx context.Context, snap cart.Snapshot) error {
	if p.n > 0 {
		p.n--
		return errors.New("disk full")
	}
	return p.MemoryPersister.Save(ctx, snap)
}

func TestUpdateItemQuantityLocalFailureResyncs(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 2), remoteLine("ol-2", "p-2", 1))}
	svc, _ := newTestService(t, gw, nil)

	persister := &failingSaves{MemoryPersister: cart.NewMemoryPersister()}
	store, err := cart.NewStore("sess-1", persister, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Load(ctx))
	_, err = svc.EnterCheckout(ctx, store, testOutlet, false)
	require.NoError(t, err)
	fetchesBefore := gw.fetches

	persister.n = 1
	item := itemForLine(t, store, "ol-1")
	err = svc.UpdateItemQuantity(ctx, store, testOutlet, item.ID, 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	assert.Equal(t, []updateCall{{LineID: "ol-1", Quantity: 5}}, gw.updates)
	assert.Greater(t, gw.fetches, fetchesBefore, "order refetched after the local write failed")
	assert.Equal(t, 5, itemForLine(t, store, "ol-1").Quantity, "cart converges on the confirmed quantity")
}

func TestUpdateItemQuantityConfirmsFirst(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 2), remoteLine("ol-2", "p-2", 1))}
	svc, _ := newTestService(t, gw, nil)
	store := syncedStore(t, svc)

	item := itemForLine(t, store, "ol-1")
	require.NoError(t, svc.UpdateItemQuantity(ctx, store, testOutlet, item.ID, 3))
	assert.Equal(t, []updateCall{{LineID: "ol-1", Quantity: 5}}, gw.updates)
	assert.Equal(t, 5, itemForLine(t, store, "ol-1").Quantity)
}

func TestUpdateItemQuantityBackendFailureLeavesCart(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 2), remoteLine("ol-2", "p-2", 1))}
	svc, _ := newTestService(t, gw, nil)
	store := syncedStore(t, svc)

	gw.updateErr = pkgerrors.New(pkgerrors.CodeDependency, "backend timeout")
	item := itemForLine(t, store, "ol-1")
	err := svc.UpdateItemQuantity(ctx, store, testOutlet, item.ID, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRetryable(err))
	assert.Equal(t, 2, itemForLine(t, store, "ol-1").Quantity)
}

func TestUpdateItemQuantityToZeroDeletes(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 2), remoteLine("ol-2", "p-2", 1))}
	svc, _ := newTestService(t, gw, nil)
	store := syncedStore(t, svc)

	item := itemForLine(t, store, "ol-2")
	require.NoError(t, svc.UpdateItemQuantity(ctx, store, testOutlet, item.ID, -1))
	assert.Equal(t, []updateCall{{LineID: "ol-2", Quantity: 0}}, gw.updates)
	assert.Equal(t, 1, store.Len())
}

func TestUpdateItemQuantityRequiresLineRef(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	svc, _ := newTestService(t, gw, nil)
	store := newLoadedStore(t)
	item, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-1", Name: "Latte", UnitPrice: 100, Quantity: 1})
	require.NoError(t, err)

	err = svc.UpdateItemQuantity(ctx, store, testOutlet, item.ID, 1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, gw.updates)

	err = svc.UpdateItemQuantity(ctx, store, testOutlet, "missing", 1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestSubmitCartCreatesLinesAndSyncs(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{products: map[string]*Product{
		"p-latte": {Ref: "p-latte", Name: "Latte", Variants: []Variant{
			{Ref: "v-oat", Name: "Oat Milk"},
			{Ref: "v-shot", Name: "Extra Shot"},
		}},
	}}
	svc, _ := newTestService(t, gw, nil)
	store := newLoadedStore(t)

	_, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-latte", Name: "Latte", UnitPrice: 32000, Quantity: 2, Options: []string{"oat milk", "extra shot"}, Size: "large"})
	require.NoError(t, err)
	_, err = store.AddItem(ctx, cart.LineItem{ProductRef: "p-tea", Name: "Tea", UnitPrice: 15000, Quantity: 1, VariantRefs: []string{"v-hot"}})
	require.NoError(t, err)
	require.NoError(t, store.Replace(ctx, append(store.Items(), cart.LineItem{Name: "Legacy", UnitPrice: 1, Quantity: 1})))

	order, err := svc.SubmitCart(ctx, store, testOutlet)
	require.NoError(t, err)
	require.NotNil(t, order)

	require.Len(t, gw.creates, 2)
	assert.Equal(t, []string{"v-oat", "v-shot"}, gw.creates[0].VariantRefs)
	assert.Equal(t, []string{"v-hot"}, gw.creates[1].VariantRefs)
	assert.Equal(t, 1, gw.productFetches)

	items := store.Items()
	require.Len(t, items, 2)
	for _, item := range items {
		assert.True(t, item.IsSynced())
		assert.NotEmpty(t, item.ProductRef)
	}
	assert.Equal(t, "large", itemForLine(t, store, "ol-1").Size, "local-only fields survive the sync")
}

func TestSubmitCartNoValidItems(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	svc, _ := newTestService(t, gw, nil)
	store := newLoadedStore(t)
	require.NoError(t, store.Replace(ctx, []cart.LineItem{{Name: "Legacy", UnitPrice: 1, Quantity: 1}}))

	_, err := svc.SubmitCart(ctx, store, testOutlet)
	require.Error(t, err)
	assert.Equal(t, "no valid items", pkgerrors.As(err).Message())
	assert.Empty(t, gw.creates)

	_, err = svc.SubmitCart(ctx, newLoadedStore(t), testOutlet)
	assert.Error(t, err, "empty cart never submits")
}

func TestSubmitCartUnknownOptionIsDataIntegrity(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{products: map[string]*Product{"p-latte": {Ref: "p-latte"}}}
	svc, _ := newTestService(t, gw, nil)
	store := newLoadedStore(t)
	_, err := store.AddItem(ctx, cart.LineItem{ProductRef: "p-latte", Name: "Latte", UnitPrice: 1, Quantity: 1, Options: []string{"caramel"}})
	require.NoError(t, err)

	_, err = svc.SubmitCart(ctx, store, testOutlet)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDataIntegrity))
	assert.Empty(t, gw.creates)
}

func TestGetOrderUsesCache(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{order: orderWithLines(remoteLine("ol-1", "p-1", 1))}
	kv := newFakeJSONStore()
	svc, _ := newTestService(t, gw, NewCache(kv, 0))
	store := newLoadedStore(t)

	_, err := svc.GetOrder(ctx, store, testOutlet)
	require.NoError(t, err)
	_, err = svc.GetOrder(ctx, store, testOutlet)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.fetches, "second read served from cache")
	assert.Contains(t, kv.data, "cartsync:order:outlet-1:sess-1")

	_, err = svc.EnterCheckout(ctx, store, testOutlet, false)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.fetches, "checkout bypasses the cache")
}
