package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/checkout-engine/internal/cart/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

type Service struct {
	log     *slog.Logger
	lines   LineRepository
	catalog Catalog
	tx      TxRunner
	now     func() time.Time
}

func NewService(log *slog.Logger, lines LineRepository, catalog Catalog, tx TxRunner) *Service {
	return &Service{
		log:     log,
		lines:   lines,
		catalog: catalog,
		tx:      tx,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AddItem merges qty of a variant into the user's cart. Availability is a
// soft check against the resulting line quantity; nothing is reserved.
func (s *Service) AddItem(ctx context.Context, userID, variantID string, qty int) (domain.Line, error) {
	if qty < 1 {
		return domain.Line{}, fmt.Errorf("%w: quantity must be at least 1", apperr.ErrInvalidInput)
	}

	var out domain.Line
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		v, err := s.catalog.Variant(ctx, variantID)
		if err != nil {
			return err
		}

		want := qty
		existing, err := s.lines.Find(ctx, userID, variantID)
		switch {
		case err == nil:
			want += existing.Quantity
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}
		if v.QuantityOnHand < want {
			return fmt.Errorf("variant %s has %d, want %d: %w", variantID, v.QuantityOnHand, want, apperr.ErrInsufficientStock)
		}

		now := s.now()
		out, err = s.lines.Merge(ctx, domain.Line{
			ID:             uuid.NewString(),
			UserID:         userID,
			VariantID:      variantID,
			Quantity:       qty,
			UnitPriceCents: v.PriceCents,
			AddedAt:        now,
			UpdatedAt:      now,
		})
		return err
	})
	if err != nil {
		return domain.Line{}, err
	}
	s.log.Debug("cart item added", "user_id", userID, "variant_id", variantID, "quantity", out.Quantity)
	return out, nil
}

// UpdateItem overwrites the quantity of a line after re-checking stock.
func (s *Service) UpdateItem(ctx context.Context, userID, lineID string, qty int) (domain.Line, error) {
	if qty < 1 {
		return domain.Line{}, fmt.Errorf("%w: quantity must be at least 1", apperr.ErrInvalidInput)
	}

	var out domain.Line
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		line, err := s.lines.Get(ctx, userID, lineID)
		if err != nil {
			return err
		}
		v, err := s.catalog.Variant(ctx, line.VariantID)
		if err != nil {
			return err
		}
		if v.QuantityOnHand < qty {
			return fmt.Errorf("variant %s has %d, want %d: %w", line.VariantID, v.QuantityOnHand, qty, apperr.ErrInsufficientStock)
		}
		out, err = s.lines.SetQuantity(ctx, userID, lineID, qty, s.now())
		return err
	})
	if err != nil {
		return domain.Line{}, err
	}
	return out, nil
}

// RemoveItem is idempotent.
func (s *Service) RemoveItem(ctx context.Context, userID, lineID string) error {
	return s.lines.Delete(ctx, userID, lineID)
}

// Clear is idempotent.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.lines.Clear(ctx, userID)
}

func (s *Service) List(ctx context.Context, userID string) (domain.Cart, error) {
	lines, err := s.lines.List(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.NewCart(userID, lines), nil
}
