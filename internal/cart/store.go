package cart

import (
	"context"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
	"github.com/google/uuid"
)

// Store is the session-scoped source of truth for cart lines. Every mutation
// is persisted before it becomes visible; a failed save leaves the previous
// state in place.
type Store struct {
	mu        sync.Mutex
	sessionID string
	persister Persister
	logg      *logger.Logger
	newID     func() string

	items   []LineItem
	version uint64
	loaded  bool
	closed  bool

	// local mutation counter and fetch bookkeeping used to drop stale remote snapshots
	mutationSeq     uint64
	fetchSeq        uint64
	appliedFetchSeq uint64
}

// FetchToken identifies a remote fetch started against this store.
type FetchToken struct {
	Seq         uint64
	MutationSeq uint64
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithIDGenerator overrides the generator used for new line ids.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore builds an empty store. Call Load before serving reads.
func NewStore(sessionID string, persister Persister, logg *logger.Logger, opts ...StoreOption) (*Store, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if persister == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart persister required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Store{
		sessionID: sessionID,
		persister: persister,
		logg:      logg,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SessionID returns the session the store belongs to.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Load hydrates the store from the persister. Loading twice is a no-op.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}
	snap, err := s.persister.Load(ctx, s.sessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if snap != nil {
		s.items = cloneItems(snap.Items)
		s.version = snap.Version
	}
	s.loaded = true
	return nil
}

// Close flushes the current state and marks the store unusable.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if !s.loaded {
		return nil
	}
	if err := s.persister.Save(ctx, s.snapshotLocked()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flush cart")
	}
	return nil
}

// Items returns a copy of the current lines.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Item returns the line with the given id.
func (s *Store) Item(id string) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return LineItem{}, false
	}
	return s.items[idx].clone(), true
}

// Len returns the number of lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Version increases on every persisted change.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns a copy of the persisted representation.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// TotalItems sums quantities over the current lines.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums line totals over the current lines.
func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, item := range s.items {
		total += item.LineTotal()
	}
	return total
}

// AddItem merges item into an existing line with the same key or appends it
// under a fresh id. Lines already linked to an order line never absorb new
// quantity. The stored line is returned.
func (s *Store) AddItem(ctx context.Context, item LineItem) (LineItem, error) {
	if err := validateNewItem(item); err != nil {
		return LineItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return LineItem{}, err
	}

	next := cloneItems(s.items)
	key := item.Key()
	for i := range next {
		if !next[i].IsSynced() && next[i].Key().Equal(key) {
			next[i].Quantity += item.Quantity
			merged := next[i].clone()
			if err := s.commitLocked(ctx, next, true); err != nil {
				return LineItem{}, err
			}
			return merged, nil
		}
	}

	added := item.clone()
	added.ID = s.newID()
	next = append(next, added)
	if err := s.commitLocked(ctx, next, true); err != nil {
		return LineItem{}, err
	}
	return added.clone(), nil
}

// RemoveItem deletes the line with the given id.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.removeLocked(ctx, id)
}

// UpdateQuantity sets the quantity of a line; qty <= 0 removes it.
func (s *Store) UpdateQuantity(ctx context.Context, id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	if qty <= 0 {
		return s.removeLocked(ctx, id)
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return errItemNotFound(id)
	}
	next := cloneItems(s.items)
	next[idx].Quantity = qty
	return s.commitLocked(ctx, next, true)
}

// UpdateItem replaces fields of a line in place. A patched quantity <= 0 removes the line.
func (s *Store) UpdateItem(ctx context.Context, id string, patch ItemPatch) (LineItem, error) {
	if patch.UnitPrice != nil && *patch.UnitPrice < 0 {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return LineItem{}, err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return LineItem{}, errItemNotFound(id)
	}
	if patch.Quantity != nil && *patch.Quantity <= 0 {
		return LineItem{}, s.removeLocked(ctx, id)
	}

	next := cloneItems(s.items)
	next[idx] = patch.apply(next[idx])
	if err := s.commitLocked(ctx, next, true); err != nil {
		return LineItem{}, err
	}
	return next[idx].clone(), nil
}

// Clear removes every line.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.commitLocked(ctx, nil, true)
}

// Retain keeps only the lines for which keep returns true and reports how
// many were dropped. Nothing is persisted when every line is kept.
func (s *Store) Retain(ctx context.Context, keep func(LineItem) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return 0, err
	}

	next := make([]LineItem, 0, len(s.items))
	for _, item := range s.items {
		if keep(item) {
			next = append(next, item.clone())
		}
	}
	removed := len(s.items) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := s.commitLocked(ctx, next, true); err != nil {
		return 0, err
	}
	return removed, nil
}

// Replace swaps the whole cart for items as a fresh remote snapshot.
func (s *Store) Replace(ctx context.Context, items []LineItem) error {
	_, err := s.ReplaceFromRemote(ctx, s.BeginFetch(), items)
	return err
}

// BeginFetch records the start of a remote fetch. Pass the token to
// ReplaceFromRemote once the fetch completes.
func (s *Store) BeginFetch() FetchToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchSeq++
	return FetchToken{Seq: s.fetchSeq, MutationSeq: s.mutationSeq}
}

// ReplaceFromRemote swaps the whole cart for the remote lines. The replace is
// skipped (and false returned) when a newer fetch was already applied or a
// local mutation happened after the fetch began.
func (s *Store) ReplaceFromRemote(ctx context.Context, token FetchToken, items []LineItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return false, err
	}
	if token.Seq <= s.appliedFetchSeq || token.MutationSeq != s.mutationSeq {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"fetch_seq":         token.Seq,
			"applied_fetch_seq": s.appliedFetchSeq,
		}), "cart.remote_snapshot_discarded")
		return false, nil
	}

	next := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		line := item.clone()
		if line.ID == "" {
			line.ID = s.newID()
		}
		next = append(next, line)
	}
	if err := s.commitLocked(ctx, next, false); err != nil {
		return false, err
	}
	s.appliedFetchSeq = token.Seq
	return true, nil
}

func (s *Store) removeLocked(ctx context.Context, id string) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return errItemNotFound(id)
	}
	next := make([]LineItem, 0, len(s.items)-1)
	next = append(next, cloneItems(s.items[:idx])...)
	next = append(next, cloneItems(s.items[idx+1:])...)
	return s.commitLocked(ctx, next, true)
}

func (s *Store) commitLocked(ctx context.Context, next []LineItem, local bool) error {
	snap := Snapshot{
		SessionID: s.sessionID,
		Items:     next,
		Version:   s.version + 1,
	}
	if err := s.persister.Save(ctx, snap); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	s.items = next
	s.version = snap.Version
	if local {
		s.mutationSeq++
	}
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: s.sessionID,
		Items:     cloneItems(s.items),
		Version:   s.version,
	}
}

func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) ready() error {
	if s.closed {
		return pkgerrors.New(pkgerrors.CodeInternal, "cart store closed")
	}
	if !s.loaded {
		return pkgerrors.New(pkgerrors.CodeInternal, "cart store not loaded")
	}
	return nil
}

func validateNewItem(item LineItem) error {
	if strings.TrimSpace(item.ProductRef) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product reference is required")
	}
	if strings.TrimSpace(item.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if item.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if item.UnitPrice < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	return nil
}

func errItemNotFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").WithDetails(map[string]any{"item_id": id})
}
