package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/cartsync/internal/repo"
	"github.com/angelmondragon/cartsync/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists cart snapshots in the cart_snapshots table. It backs
// carts when redis is not configured.
type Repository struct {
	base repo.Base
	ttl  time.Duration
	now  func() time.Time
}

// NewRepository constructs a snapshot repository bound to the provided DB.
func NewRepository(db *gorm.DB, ttl time.Duration) *Repository {
	return &Repository{base: repo.NewBase(db), ttl: ttl, now: time.Now}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{base: r.base.Bind(tx), ttl: r.ttl, now: r.now}
}

// Load returns the snapshot for the session, ignoring expired rows.
func (r *Repository) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	var row models.CartSnapshot
	err := r.base.Conn(ctx).
		Where("session_id = ? AND expires_at > ?", sessionID, r.now().UTC()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []LineItem
	if len(row.Items) > 0 {
		if err := json.Unmarshal([]byte(row.Items), &items); err != nil {
			return nil, fmt.Errorf("decode cart snapshot %s: %w", sessionID, err)
		}
	}
	return &Snapshot{SessionID: row.SessionID, Items: items, Version: row.Version}, nil
}

// Save upserts the snapshot and slides its expiry forward.
func (r *Repository) Save(ctx context.Context, snap Snapshot) error {
	items := snap.Items
	if items == nil {
		items = []LineItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart snapshot %s: %w", snap.SessionID, err)
	}
	row := models.CartSnapshot{
		SessionID: snap.SessionID,
		Items:     string(payload),
		Version:   snap.Version,
		ExpiresAt: r.expiry(),
	}
	return r.base.Conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "version", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
}

// Delete removes the session snapshot.
func (r *Repository) Delete(ctx context.Context, sessionID string) error {
	return r.base.Conn(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.CartSnapshot{}).Error
}

// PurgeExpired deletes snapshots whose expiry has passed and reports how many went.
func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.base.Conn(ctx).
		Where("expires_at <= ?", r.now().UTC()).
		Delete(&models.CartSnapshot{})
	return res.RowsAffected, res.Error
}

func (r *Repository) expiry() time.Time {
	ttl := r.ttl
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return r.now().UTC().Add(ttl)
}
