package vouchers

import (
	"context"
	"strings"

	"github.com/angelmondragon/cartsync/pkg/db"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/google/uuid"
)

// Service exposes voucher lookup and applicability checks.
type Service interface {
	Lookup(ctx context.Context, id string) (*Voucher, error)
	LookupByCode(ctx context.Context, code string) (*Voucher, error)
	Check(ctx context.Context, id string, subtotal int64) (*Voucher, Validation, error)
	Create(ctx context.Context, v Voucher) (Voucher, error)
}

type service struct {
	repo *Repository
}

// NewService builds a voucher service backed by repo.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher repo is required")
	}
	return &service{repo: repo}, nil
}

// Lookup returns the voucher with the given id. A blank id yields (nil, nil).
func (s *service) Lookup(ctx context.Context, id string) (*Voucher, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	v, err := s.repo.FindByID(ctx, id)
	return wrapLookup(v, err)
}

func (s *service) LookupByCode(ctx context.Context, code string) (*Voucher, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code is required")
	}
	v, err := s.repo.FindByCode(ctx, code)
	return wrapLookup(v, err)
}

// Check loads the voucher and runs Validate against subtotal.
func (s *service) Check(ctx context.Context, id string, subtotal int64) (*Voucher, Validation, error) {
	v, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, Validation{}, err
	}
	return v, Validate(v, subtotal), nil
}

func (s *service) Create(ctx context.Context, v Voucher) (Voucher, error) {
	if err := v.Validate(); err != nil {
		return Voucher{}, err
	}
	if strings.TrimSpace(v.ID) == "" {
		v.ID = uuid.NewString()
	}
	v.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	if v.Code == "" {
		return Voucher{}, pkgerrors.New(pkgerrors.CodeValidation, "voucher code is required")
	}
	if err := s.repo.Create(ctx, v); err != nil {
		if db.IsUniqueViolation(err, "") {
			return Voucher{}, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "voucher code already exists")
		}
		return Voucher{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create voucher")
	}
	return v, nil
}

func wrapLookup(v Voucher, err error) (*Voucher, error) {
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "voucher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load voucher")
	}
	return &v, nil
}
