package memdb

import (
	"context"
	"fmt"
	"time"

	invdomain "github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

type Variants struct{ db *DB }

func (db *DB) Variants() *Variants { return &Variants{db: db} }

func (r *Variants) Get(ctx context.Context, id string) (invdomain.Variant, error) {
	var out invdomain.Variant
	err := r.db.run(ctx, "variants.get", func(s *state) error {
		v, ok := s.variants[id]
		if !ok {
			return fmt.Errorf("variant %s: %w", id, apperr.ErrNotFound)
		}
		out = v
		return nil
	})
	return out, err
}

func (r *Variants) Save(ctx context.Context, v invdomain.Variant) error {
	return r.db.run(ctx, "variants.save", func(s *state) error {
		if v.QuantityOnHand < 0 {
			return fmt.Errorf("%w: negative quantity", apperr.ErrInvalidInput)
		}
		v.UpdatedAt = r.db.now()
		s.variants[v.ID] = v
		return nil
	})
}

func (r *Variants) Reserve(ctx context.Context, id string, qty int) (invdomain.Variant, error) {
	var out invdomain.Variant
	err := r.db.run(ctx, "variants.reserve", func(s *state) error {
		v, ok := s.variants[id]
		if !ok {
			return fmt.Errorf("variant %s: %w", id, apperr.ErrNotFound)
		}
		if v.QuantityOnHand < qty {
			return fmt.Errorf("variant %s has %d, want %d: %w", id, v.QuantityOnHand, qty, apperr.ErrInsufficientStock)
		}
		v.QuantityOnHand -= qty
		v.UpdatedAt = r.db.now()
		s.variants[id] = v
		out = v
		return nil
	})
	return out, err
}

func (r *Variants) Release(ctx context.Context, id string, qty int) (invdomain.Variant, error) {
	return r.add(ctx, "variants.release", id, qty, nil)
}

func (r *Variants) Restock(ctx context.Context, id string, qty int, at time.Time) (invdomain.Variant, error) {
	return r.add(ctx, "variants.restock", id, qty, &at)
}

func (r *Variants) add(ctx context.Context, op, id string, qty int, restockedAt *time.Time) (invdomain.Variant, error) {
	var out invdomain.Variant
	err := r.db.run(ctx, op, func(s *state) error {
		v, ok := s.variants[id]
		if !ok {
			return fmt.Errorf("variant %s: %w", id, apperr.ErrNotFound)
		}
		v.QuantityOnHand += qty
		v.UpdatedAt = r.db.now()
		if restockedAt != nil {
			v.LastRestockedAt = restockedAt
		}
		s.variants[id] = v
		out = v
		return nil
	})
	return out, err
}

func (r *Variants) SetPrice(ctx context.Context, id string, priceCents int64) error {
	return r.db.run(ctx, "variants.set_price", func(s *state) error {
		v, ok := s.variants[id]
		if !ok {
			return fmt.Errorf("variant %s: %w", id, apperr.ErrNotFound)
		}
		v.PriceCents = priceCents
		v.UpdatedAt = r.db.now()
		s.variants[id] = v
		return nil
	})
}
