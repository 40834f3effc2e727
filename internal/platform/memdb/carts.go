package memdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	cartdomain "github.com/dmehra2102/checkout-engine/internal/cart/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

type CartLines struct{ db *DB }

func (db *DB) CartLines() *CartLines { return &CartLines{db: db} }

func (r *CartLines) Find(ctx context.Context, userID, variantID string) (cartdomain.Line, error) {
	var out cartdomain.Line
	err := r.db.run(ctx, "cart.find", func(s *state) error {
		id, ok := s.cartByUser[userID][variantID]
		if !ok {
			return fmt.Errorf("cart line for variant %s: %w", variantID, apperr.ErrNotFound)
		}
		out = s.cartLines[id]
		return nil
	})
	return out, err
}

func (r *CartLines) Get(ctx context.Context, userID, lineID string) (cartdomain.Line, error) {
	var out cartdomain.Line
	err := r.db.run(ctx, "cart.get", func(s *state) error {
		l, ok := s.cartLines[lineID]
		if !ok || l.UserID != userID {
			return fmt.Errorf("cart line %s: %w", lineID, apperr.ErrNotFound)
		}
		out = l
		return nil
	})
	return out, err
}

func (r *CartLines) Merge(ctx context.Context, line cartdomain.Line) (cartdomain.Line, error) {
	var out cartdomain.Line
	err := r.db.run(ctx, "cart.merge", func(s *state) error {
		if _, ok := s.variants[line.VariantID]; !ok {
			return fmt.Errorf("variant %s: %w", line.VariantID, apperr.ErrNotFound)
		}
		if id, ok := s.cartByUser[line.UserID][line.VariantID]; ok {
			existing := s.cartLines[id]
			existing.Quantity += line.Quantity
			existing.UnitPriceCents = line.UnitPriceCents
			existing.UpdatedAt = line.UpdatedAt
			s.cartLines[id] = existing
			out = existing
			return nil
		}
		if s.cartByUser[line.UserID] == nil {
			s.cartByUser[line.UserID] = map[string]string{}
		}
		s.cartByUser[line.UserID][line.VariantID] = line.ID
		s.cartLines[line.ID] = line
		out = line
		return nil
	})
	return out, err
}

func (r *CartLines) SetQuantity(ctx context.Context, userID, lineID string, qty int, at time.Time) (cartdomain.Line, error) {
	var out cartdomain.Line
	err := r.db.run(ctx, "cart.set_quantity", func(s *state) error {
		l, ok := s.cartLines[lineID]
		if !ok || l.UserID != userID {
			return fmt.Errorf("cart line %s: %w", lineID, apperr.ErrNotFound)
		}
		l.Quantity = qty
		l.UpdatedAt = at
		s.cartLines[lineID] = l
		out = l
		return nil
	})
	return out, err
}

func (r *CartLines) Delete(ctx context.Context, userID, lineID string) error {
	return r.db.run(ctx, "cart.delete", func(s *state) error {
		l, ok := s.cartLines[lineID]
		if !ok || l.UserID != userID {
			return nil
		}
		delete(s.cartLines, lineID)
		delete(s.cartByUser[userID], l.VariantID)
		return nil
	})
}

func (r *CartLines) Clear(ctx context.Context, userID string) error {
	return r.db.run(ctx, "cart.clear", func(s *state) error {
		for _, id := range s.cartByUser[userID] {
			delete(s.cartLines, id)
		}
		delete(s.cartByUser, userID)
		return nil
	})
}

func (r *CartLines) List(ctx context.Context, userID string) ([]cartdomain.Line, error) {
	var out []cartdomain.Line
	err := r.db.run(ctx, "cart.list", func(s *state) error {
		for _, id := range s.cartByUser[userID] {
			out = append(out, s.cartLines[id])
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].AddedAt.Equal(out[j].AddedAt) {
				return out[i].ID < out[j].ID
			}
			return out[i].AddedAt.Before(out[j].AddedAt)
		})
		return nil
	})
	return out, err
}
