package models

import "time"

// CartSnapshot persists a session cart as a single JSON document.
type CartSnapshot struct {
	SessionID string    `gorm:"column:session_id;primaryKey"`
	Items     string    `gorm:"column:items;type:text;not null"`
	Version   uint64    `gorm:"column:version;not null;default:0"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartSnapshot) TableName() string { return "cart_snapshots" }
