package application

import (
	"context"
	"fmt"

	"github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

// Apply folds one catalog change into the ledger.
func (l *Ledger) Apply(ctx context.Context, ev domain.CatalogEvent) error {
	if ev.VariantID == "" {
		return fmt.Errorf("%w: catalog event without variant id", apperr.ErrInvalidInput)
	}
	switch ev.Kind {
	case domain.CatalogVariantUpserted:
		return l.Upsert(ctx, domain.Variant{
			ID:             ev.VariantID,
			ProductID:      ev.ProductID,
			Size:           ev.Size,
			Color:          ev.Color,
			QuantityOnHand: ev.Quantity,
			ReorderLevel:   ev.ReorderLevel,
			PriceCents:     ev.PriceCents,
		})
	case domain.CatalogVariantRestocked:
		_, err := l.Restock(ctx, ev.VariantID, ev.Quantity)
		return err
	case domain.CatalogPriceChanged:
		return l.SetPrice(ctx, ev.VariantID, ev.PriceCents)
	default:
		return fmt.Errorf("%w: unknown catalog event %q", apperr.ErrInvalidInput, ev.Kind)
	}
}
