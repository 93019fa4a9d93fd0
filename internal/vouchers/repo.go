package vouchers

import (
	"context"
	"strings"

	"github.com/angelmondragon/cartsync/internal/repo"
	"github.com/angelmondragon/cartsync/pkg/db/models"
	"gorm.io/gorm"
)

// Repository encapsulates voucher persistence.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a voucher repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// FindByID returns the voucher with the given id or gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id string) (Voucher, error) {
	var row models.Voucher
	if err := r.base.Conn(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return Voucher{}, err
	}
	return fromModel(row), nil
}

// FindByCode looks a voucher up by its customer-facing code, ignoring case.
func (r *Repository) FindByCode(ctx context.Context, code string) (Voucher, error) {
	var row models.Voucher
	err := r.base.Conn(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&row).Error
	if err != nil {
		return Voucher{}, err
	}
	return fromModel(row), nil
}

// ListActive returns every active voucher ordered by code.
func (r *Repository) ListActive(ctx context.Context) ([]Voucher, error) {
	var rows []models.Voucher
	if err := r.base.Conn(ctx).Where("is_active = ?", true).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Voucher, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

// Create inserts a voucher.
func (r *Repository) Create(ctx context.Context, v Voucher) error {
	row := toModel(v)
	return r.base.Conn(ctx).Create(&row).Error
}
