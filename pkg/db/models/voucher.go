package models

import (
	"time"

	"github.com/angelmondragon/cartsync/pkg/enums"
)

// Voucher is a discount rule selectable at checkout.
type Voucher struct {
	ID                  string            `gorm:"column:id;primaryKey"`
	Code                string            `gorm:"column:code;not null;uniqueIndex"`
	Type                enums.VoucherType `gorm:"column:type;not null"`
	Value               int64             `gorm:"column:value;not null"`
	MaxDiscountCents    *int64            `gorm:"column:max_discount_cents"`
	MinTransactionCents *int64            `gorm:"column:min_transaction_cents"`
	IsActive            bool              `gorm:"column:is_active;not null"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Voucher) TableName() string { return "vouchers" }
