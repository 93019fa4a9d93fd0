// Package migration strips cart lines persisted by older clients that lack
// the identifiers the ordering backend needs.
package migration

import (
	"context"
	"strings"

	"github.com/angelmondragon/cartsync/internal/cart"
	pkgerrors "github.com/angelmondragon/cartsync/pkg/errors"
	"github.com/angelmondragon/cartsync/pkg/logger"
)

// ErrNoValidItems is the message reported when filtering leaves nothing to submit.
const ErrNoValidItems = "no valid items"

// LegacyItemDetail describes a dropped line in error details and logs.
type LegacyItemDetail struct {
	ItemID string `json:"item_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// IsLegacyItem reports whether the line is missing its product reference.
func IsLegacyItem(item cart.LineItem) bool {
	return strings.TrimSpace(item.ProductRef) == ""
}

// FilterLegacyItems returns the lines that are safe to submit and how many were dropped.
func FilterLegacyItems(items []cart.LineItem) ([]cart.LineItem, int) {
	kept := make([]cart.LineItem, 0, len(items))
	for _, item := range items {
		if IsLegacyItem(item) {
			continue
		}
		kept = append(kept, item)
	}
	return kept, len(items) - len(kept)
}

// RequireValidItems filters items and fails when nothing valid remains.
func RequireValidItems(items []cart.LineItem) ([]cart.LineItem, int, error) {
	kept, removed := FilterLegacyItems(items)
	if len(kept) > 0 {
		return kept, removed, nil
	}

	dropped := make([]LegacyItemDetail, 0, removed)
	for _, item := range items {
		if IsLegacyItem(item) {
			dropped = append(dropped, LegacyItemDetail{ItemID: item.ID, Name: item.Name})
		}
	}
	return nil, removed, pkgerrors.New(pkgerrors.CodeValidation, ErrNoValidItems).WithDetails(map[string]any{
		"removed": removed,
		"items":   dropped,
	})
}

// Service applies the legacy filter to loaded session carts.
type Service struct {
	logg *logger.Logger
}

func NewService(logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{logg: logg}
}

// Migrate drops legacy lines from store in place. It is meant to run as a
// cart.LoadHook so stale lines never reach a handler.
func (s *Service) Migrate(ctx context.Context, store *cart.Store) error {
	removed, err := store.Retain(ctx, func(item cart.LineItem) bool { return !IsLegacyItem(item) })
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "strip legacy cart items")
	}
	if removed > 0 {
		logCtx := s.logg.WithSessionID(ctx, store.SessionID())
		logCtx = s.logg.WithField(logCtx, "removed", removed)
		s.logg.Warn(logCtx, "cart.legacy_items_removed")
	}
	return nil
}

// Hook adapts Migrate to the cart manager's load hook signature.
func (s *Service) Hook() cart.LoadHook {
	return s.Migrate
}
