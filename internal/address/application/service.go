package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/checkout-engine/internal/address/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

type Repository interface {
	Insert(ctx context.Context, a domain.Address) error
	Get(ctx context.Context, userID, id string) (domain.Address, error)
	List(ctx context.Context, userID string) ([]domain.Address, error)
	// SetDefault clears every other default of the user and marks id, as one
	// step serialized per user.
	SetDefault(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service keeps at most one default address per user.
type Service struct {
	log  *slog.Logger
	repo Repository
	tx   TxRunner
	now  func() time.Time
}

func NewService(log *slog.Logger, repo Repository, tx TxRunner) *Service {
	return &Service{
		log:  log,
		repo: repo,
		tx:   tx,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, userID string, a domain.Address) (domain.Address, error) {
	if strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" || strings.TrimSpace(a.Country) == "" {
		return domain.Address{}, fmt.Errorf("%w: street, city and country are required", apperr.ErrInvalidInput)
	}
	a.ID = uuid.NewString()
	a.UserID = userID
	a.CreatedAt = s.now()
	makeDefault := a.IsDefault
	a.IsDefault = false

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, a); err != nil {
			return err
		}
		if !makeDefault {
			return nil
		}
		return s.repo.SetDefault(ctx, userID, a.ID)
	})
	if err != nil {
		return domain.Address{}, err
	}
	a.IsDefault = makeDefault
	return a, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (domain.Address, error) {
	return s.repo.Get(ctx, userID, id)
}

// List returns the default address first, then newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Address, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) SetDefault(ctx context.Context, userID, id string) error {
	if err := s.repo.SetDefault(ctx, userID, id); err != nil {
		return err
	}
	s.log.Info("default address changed", "user_id", userID, "address_id", id)
	return nil
}

// Delete is idempotent.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}
