package cart

import (
	"context"
	"sync"
)

// Snapshot is the persisted form of a session cart. It intentionally carries
// no schema version; incompatible lines are stripped after load.
type Snapshot struct {
	SessionID string     `json:"session_id"`
	Items     []LineItem `json:"items"`
	Version   uint64     `json:"version"`
}

// Persister stores cart snapshots durably. Load returns nil without error when
// nothing was stored for the session.
type Persister interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryPersister keeps snapshots in process memory.
type MemoryPersister struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{snaps: map[string]Snapshot{}}
}

func (m *MemoryPersister) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[sessionID]
	if !ok {
		return nil, nil
	}
	snap.Items = cloneItems(snap.Items)
	return &snap, nil
}

func (m *MemoryPersister) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Items = cloneItems(snap.Items)
	m.snaps[snap.SessionID] = snap
	return nil
}

func (m *MemoryPersister) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, sessionID)
	return nil
}
