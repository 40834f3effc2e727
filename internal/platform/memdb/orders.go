package memdb

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	orderdomain "github.com/dmehra2102/checkout-engine/internal/order/domain"
	paydomain "github.com/dmehra2102/checkout-engine/internal/payment/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

type Orders struct{ db *DB }

func (db *DB) Orders() *Orders { return &Orders{db: db} }

func (r *Orders) Insert(ctx context.Context, o orderdomain.Order) error {
	return r.db.run(ctx, "orders.insert", func(s *state) error {
		if _, ok := s.orderNumbers[o.Number]; ok {
			return fmt.Errorf("order number %s: %w", o.Number, apperr.ErrConflict)
		}
		if _, ok := s.orders[o.ID]; ok {
			return fmt.Errorf("order %s: %w", o.ID, apperr.ErrConflict)
		}
		for _, l := range o.Lines {
			if _, ok := s.variants[l.VariantID]; !ok {
				return fmt.Errorf("variant %s: %w", l.VariantID, apperr.ErrNotFound)
			}
		}
		o.Lines = slices.Clone(o.Lines)
		s.orders[o.ID] = o
		s.orderNumbers[o.Number] = o.ID
		s.ordersByUser[o.UserID] = append(s.ordersByUser[o.UserID], o.ID)
		return nil
	})
}

func (r *Orders) Get(ctx context.Context, id string) (orderdomain.Order, error) {
	var out orderdomain.Order
	err := r.db.run(ctx, "orders.get", func(s *state) error {
		o, ok := s.orders[id]
		if !ok {
			return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
		}
		out = o
		out.Lines = slices.Clone(o.Lines)
		return nil
	})
	return out, err
}

func (r *Orders) ListByUser(ctx context.Context, userID string, f orderdomain.ListFilter) ([]orderdomain.Order, int, error) {
	var (
		out   []orderdomain.Order
		total int
	)
	err := r.db.run(ctx, "orders.list", func(s *state) error {
		var all []orderdomain.Order
		for _, id := range s.ordersByUser[userID] {
			o := s.orders[id]
			if f.Status != "" && o.Status != f.Status {
				continue
			}
			o.Lines = slices.Clone(o.Lines)
			all = append(all, o)
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].OrderedAt.After(all[j].OrderedAt) })
		total = len(all)
		if f.Offset >= len(all) {
			return nil
		}
		end := min(f.Offset+f.Limit, len(all))
		out = all[f.Offset:end]
		return nil
	})
	return out, total, err
}

func (r *Orders) Transition(ctx context.Context, id string, from, to orderdomain.Status, tracking string, at time.Time) (bool, error) {
	var ok bool
	err := r.db.run(ctx, "orders.transition", func(s *state) error {
		o, found := s.orders[id]
		if !found {
			return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
		}
		if o.Status != from {
			return nil
		}
		o.Status = to
		if tracking != "" {
			o.TrackingNumber = tracking
		}
		o.UpdatedAt = at
		s.orders[id] = o
		ok = true
		return nil
	})
	return ok, err
}

type Payments struct{ db *DB }

func (db *DB) Payments() *Payments { return &Payments{db: db} }

func (r *Payments) Insert(ctx context.Context, p paydomain.Payment) error {
	return r.db.run(ctx, "payments.insert", func(s *state) error {
		if _, ok := s.orders[p.OrderID]; !ok {
			return fmt.Errorf("order %s: %w", p.OrderID, apperr.ErrNotFound)
		}
		if _, ok := s.payments[p.OrderID]; ok {
			return fmt.Errorf("order %s: %w", p.OrderID, apperr.ErrDuplicatePayment)
		}
		s.payments[p.OrderID] = p
		return nil
	})
}

func (r *Payments) GetByOrder(ctx context.Context, orderID string) (paydomain.Payment, error) {
	var out paydomain.Payment
	err := r.db.run(ctx, "payments.get", func(s *state) error {
		p, ok := s.payments[orderID]
		if !ok {
			return fmt.Errorf("payment for order %s: %w", orderID, apperr.ErrNotFound)
		}
		out = p
		return nil
	})
	return out, err
}

func (r *Payments) Transition(ctx context.Context, orderID string, from, to paydomain.Status, txRef string, at time.Time) (bool, error) {
	var ok bool
	err := r.db.run(ctx, "payments.transition", func(s *state) error {
		p, found := s.payments[orderID]
		if !found {
			return fmt.Errorf("payment for order %s: %w", orderID, apperr.ErrNotFound)
		}
		if p.Status != from {
			return nil
		}
		p.Status = to
		if txRef != "" {
			p.TransactionRef = txRef
		}
		p.UpdatedAt = at
		s.payments[orderID] = p
		ok = true
		return nil
	})
	return ok, err
}
