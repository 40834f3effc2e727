package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/checkout-engine/internal/payment/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/postgres"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Insert(ctx context.Context, p domain.Payment) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO payments (id, order_id, method, status, transaction_ref, amount_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.OrderID, p.Method, p.Status, p.TransactionRef, p.AmountCents, p.CreatedAt, p.UpdatedAt)
	switch {
	case postgres.IsUniqueViolation(err, "payments_order_id_key"):
		return fmt.Errorf("order %s: %w", p.OrderID, apperr.ErrDuplicatePayment)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("order %s: %w", p.OrderID, apperr.ErrNotFound)
	}
	return postgres.Classify("insert payment", err)
}

func (r *Repository) GetByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	var p domain.Payment
	err := postgres.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, order_id, method, status, transaction_ref, amount_cents, created_at, updated_at
		FROM payments WHERE order_id = $1`, orderID).
		Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.TransactionRef, &p.AmountCents, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Payment{}, postgres.Classify("get payment for order "+orderID, err)
	}
	return p, nil
}

func (r *Repository) Transition(ctx context.Context, orderID string, from, to domain.Status, txRef string, at time.Time) (bool, error) {
	tag, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE payments
		SET status = $3,
			transaction_ref = CASE WHEN $4 = '' THEN transaction_ref ELSE $4 END,
			updated_at = $5
		WHERE order_id = $1 AND status = $2`,
		orderID, from, to, txRef, at)
	if err != nil {
		return false, postgres.Classify("transition payment", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByOrder(ctx, orderID); err != nil {
		return false, err
	}
	return false, nil
}
