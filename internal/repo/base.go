package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the gorm handle shared by the snapshot and voucher repositories.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// Conn returns the handle bound to ctx. A nil ctx yields the raw handle.
func (b Base) Conn(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind swaps the handle for tx, keeping b when tx is nil.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}
