package memdb

import (
	"context"
	"fmt"
	"sort"

	addrdomain "github.com/dmehra2102/checkout-engine/internal/address/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

type Addresses struct{ db *DB }

func (db *DB) Addresses() *Addresses { return &Addresses{db: db} }

func (r *Addresses) Insert(ctx context.Context, a addrdomain.Address) error {
	return r.db.run(ctx, "addresses.insert", func(s *state) error {
		if _, ok := s.addresses[a.ID]; ok {
			return fmt.Errorf("address %s: %w", a.ID, apperr.ErrConflict)
		}
		if a.IsDefault {
			for id := range s.addressesByUser[a.UserID] {
				if s.addresses[id].IsDefault {
					return fmt.Errorf("user %s already has a default address: %w", a.UserID, apperr.ErrConflict)
				}
			}
		}
		s.addresses[a.ID] = a
		if s.addressesByUser[a.UserID] == nil {
			s.addressesByUser[a.UserID] = map[string]struct{}{}
		}
		s.addressesByUser[a.UserID][a.ID] = struct{}{}
		return nil
	})
}

func (r *Addresses) Get(ctx context.Context, userID, id string) (addrdomain.Address, error) {
	var out addrdomain.Address
	err := r.db.run(ctx, "addresses.get", func(s *state) error {
		a, ok := s.addresses[id]
		if !ok || a.UserID != userID {
			return fmt.Errorf("address %s: %w", id, apperr.ErrNotFound)
		}
		out = a
		return nil
	})
	return out, err
}

func (r *Addresses) List(ctx context.Context, userID string) ([]addrdomain.Address, error) {
	var out []addrdomain.Address
	err := r.db.run(ctx, "addresses.list", func(s *state) error {
		for id := range s.addressesByUser[userID] {
			out = append(out, s.addresses[id])
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].IsDefault != out[j].IsDefault {
				return out[i].IsDefault
			}
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].ID < out[j].ID
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		return nil
	})
	return out, err
}

// SetDefault flips every default of the user off and addressID on in one step.
func (r *Addresses) SetDefault(ctx context.Context, userID, addressID string) error {
	return r.db.run(ctx, "addresses.set_default", func(s *state) error {
		target, ok := s.addresses[addressID]
		if !ok || target.UserID != userID {
			return fmt.Errorf("address %s: %w", addressID, apperr.ErrNotFound)
		}
		for id := range s.addressesByUser[userID] {
			a := s.addresses[id]
			a.IsDefault = id == addressID
			s.addresses[id] = a
		}
		return nil
	})
}

func (r *Addresses) Delete(ctx context.Context, userID, id string) error {
	return r.db.run(ctx, "addresses.delete", func(s *state) error {
		a, ok := s.addresses[id]
		if !ok || a.UserID != userID {
			return nil
		}
		delete(s.addresses, id)
		delete(s.addressesByUser[userID], id)
		return nil
	})
}

func (r *Addresses) DeleteAllForUser(ctx context.Context, userID string) error {
	return r.db.run(ctx, "addresses.delete_all", func(s *state) error {
		for id := range s.addressesByUser[userID] {
			delete(s.addresses, id)
		}
		delete(s.addressesByUser, userID)
		return nil
	})
}
