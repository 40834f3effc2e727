// Package account applies the deletion rules for a user's data. Carts and
// addresses go with the user; orders, their lines and payments are kept.
package account

import (
	"context"
	"log/slog"
)

type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

type AddressPurger interface {
	DeleteAllForUser(ctx context.Context, userID string) error
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	log       *slog.Logger
	carts     CartClearer
	addresses AddressPurger
	tx        TxRunner
}

func NewService(log *slog.Logger, carts CartClearer, addresses AddressPurger, tx TxRunner) *Service {
	return &Service{log: log, carts: carts, addresses: addresses, tx: tx}
}

// PurgeUser removes the user's cart lines and addresses in one transaction.
// Order history references addresses by id only and survives the purge.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.carts.Clear(ctx, userID); err != nil {
			return err
		}
		return s.addresses.DeleteAllForUser(ctx, userID)
	})
	if err != nil {
		return err
	}
	s.log.Info("user data purged", "user_id", userID)
	return nil
}
