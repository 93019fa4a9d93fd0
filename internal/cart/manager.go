package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
	"go.uber.org/multierr"
)

// LoadHook runs once after a store is hydrated, before it is handed out.
type LoadHook func(ctx context.Context, store *Store) error

// Manager owns the live session stores. It replaces a process-wide singleton:
// each session gets its own Store with an explicit load/close lifecycle.
type Manager struct {
	mu        sync.Mutex
	stores    map[string]*Store
	loading   map[string]*pendingLoad
	touched   map[string]time.Time
	now       func() time.Time
	persister Persister
	logg      *logger.Logger
	hooks     []LoadHook
	storeOpts []StoreOption
}

// pendingLoad lets concurrent callers for one session share a single load.
type pendingLoad struct {
	done  chan struct{}
	store *Store
	err   error
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithLoadHook registers a hook executed for every freshly loaded store.
func WithLoadHook(hook LoadHook) ManagerOption {
	return func(m *Manager) {
		if hook != nil {
			m.hooks = append(m.hooks, hook)
		}
	}
}

// WithStoreOptions forwards options to every store the manager creates.
func WithStoreOptions(opts ...StoreOption) ManagerOption {
	return func(m *Manager) {
		m.storeOpts = append(m.storeOpts, opts...)
	}
}

func NewManager(persister Persister, logg *logger.Logger, opts ...ManagerOption) (*Manager, error) {
	if persister == nil {
		return nil, fmt.Errorf("cart persister required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	m := &Manager{
		stores:    map[string]*Store{},
		loading:   map[string]*pendingLoad{},
		touched:   map[string]time.Time{},
		now:       time.Now,
		persister: persister,
		logg:      logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Get returns the loaded store for sessionID, hydrating it on first use.
// Hydration runs outside the manager lock so a slow persister only delays
// callers of the same session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart session is required")
	}

	m.mu.Lock()
	if store, ok := m.stores[sessionID]; ok {
		m.touched[sessionID] = m.now()
		m.mu.Unlock()
		return store, nil
	}
	if pending, ok := m.loading[sessionID]; ok {
		m.mu.Unlock()
		select {
		case <-pending.done:
			return pending.store, pending.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	pending := &pendingLoad{done: make(chan struct{})}
	m.loading[sessionID] = pending
	m.mu.Unlock()

	store, err := m.load(ctx, sessionID)

	m.mu.Lock()
	delete(m.loading, sessionID)
	if err == nil {
		m.stores[sessionID] = store
		m.touched[sessionID] = m.now()
	}
	m.mu.Unlock()

	pending.store, pending.err = store, err
	close(pending.done)
	return store, err
}

func (m *Manager) load(ctx context.Context, sessionID string) (*Store, error) {
	store, err := NewStore(sessionID, m.persister, m.logg, m.storeOpts...)
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	for _, hook := range m.hooks {
		if err := hook(ctx, store); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Evict flushes and forgets a session store.
func (m *Manager) Evict(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	store, ok := m.stores[sessionID]
	delete(m.stores, sessionID)
	delete(m.touched, sessionID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return store.Close(ctx)
}

// Close flushes every live store. All stores are attempted; failures are combined.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	stores := m.stores
	m.stores = map[string]*Store{}
	m.touched = map[string]time.Time{}
	m.mu.Unlock()

	errs := closeAll(ctx, stores)
	if errs != nil {
		m.logg.Error(ctx, "cart.manager_close_failed", errs)
	}
	return errs
}

// EvictIdle flushes and forgets every store not requested within idle.
// It returns how many stores were evicted.
func (m *Manager) EvictIdle(ctx context.Context, idle time.Duration) (int, error) {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	stale := map[string]*Store{}
	for id, store := range m.stores {
		if m.touched[id].Before(cutoff) {
			stale[id] = store
			delete(m.stores, id)
			delete(m.touched, id)
		}
	}
	m.mu.Unlock()

	return len(stale), closeAll(ctx, stale)
}

func closeAll(ctx context.Context, stores map[string]*Store) error {
	var errs error
	for id, store := range stores {
		if err := store.Close(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errs
}

// Live returns the number of stores currently held.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}
