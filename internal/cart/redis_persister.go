package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cartsync/pkg/redis"
)

// RedisPersister stores each session snapshot as a JSON document with a sliding TTL.
type RedisPersister struct {
	store redis.JSONStore
	ttl   time.Duration
}

func NewRedisPersister(store redis.JSONStore, ttl time.Duration) (*RedisPersister, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &RedisPersister{store: store, ttl: ttl}, nil
}

func (p *RedisPersister) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	var snap Snapshot
	found, err := p.store.GetJSON(ctx, p.store.CartKey(sessionID), &snap)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	snap.SessionID = sessionID
	return &snap, nil
}

func (p *RedisPersister) Save(ctx context.Context, snap Snapshot) error {
	return p.store.SetJSON(ctx, p.store.CartKey(snap.SessionID), snap, p.ttl)
}

func (p *RedisPersister) Delete(ctx context.Context, sessionID string) error {
	return p.store.Del(ctx, p.store.CartKey(sessionID))
}
