package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cartsync/pkg/logger"
)

const (
	CartSnapshotPurgeJobName = "cart-snapshot-purge"
	IdleCartEvictionJobName  = "idle-cart-eviction"

	defaultIdleAfter = 30 * time.Minute
)

type snapshotPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// NewCartSnapshotPurgeJob deletes SQL cart snapshots past their expiry.
func NewCartSnapshotPurgeJob(logg *logger.Logger, purger snapshotPurger) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if purger == nil {
		return nil, fmt.Errorf("snapshot purger required")
	}
	return &cartSnapshotPurgeJob{logg: logg, purger: purger}, nil
}

type cartSnapshotPurgeJob struct {
	logg   *logger.Logger
	purger snapshotPurger
}

func (j *cartSnapshotPurgeJob) Name() string { return CartSnapshotPurgeJobName }

func (j *cartSnapshotPurgeJob) Run(ctx context.Context) error {
	purged, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge cart snapshots: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", purged), "cart snapshot purge complete")
	return nil
}

type idleEvicter interface {
	EvictIdle(ctx context.Context, idle time.Duration) (int, error)
}

// NewIdleCartEvictionJob flushes and unloads carts nobody touched within idleAfter.
func NewIdleCartEvictionJob(logg *logger.Logger, carts idleEvicter, idleAfter time.Duration) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart manager required")
	}
	if idleAfter <= 0 {
		idleAfter = defaultIdleAfter
	}
	return &idleCartEvictionJob{logg: logg, carts: carts, idleAfter: idleAfter}, nil
}

type idleCartEvictionJob struct {
	logg      *logger.Logger
	carts     idleEvicter
	idleAfter time.Duration
}

func (j *idleCartEvictionJob) Name() string { return IdleCartEvictionJobName }

func (j *idleCartEvictionJob) Run(ctx context.Context) error {
	evicted, err := j.carts.EvictIdle(ctx, j.idleAfter)
	logCtx := j.logg.WithFields(ctx, map[string]any{"evicted": evicted, "idle_after": j.idleAfter.String()})
	if err != nil {
		return fmt.Errorf("evict idle carts: %w", err)
	}
	if evicted > 0 {
		j.logg.Info(logCtx, "idle carts evicted")
	}
	return nil
}
