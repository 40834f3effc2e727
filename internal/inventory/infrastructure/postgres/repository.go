package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/postgres"
)

const variantColumns = `id, product_id, size, color, quantity_on_hand, reorder_level, price_cents, last_restocked_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

func scanVariant(row pgx.Row) (domain.Variant, error) {
	var v domain.Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.QuantityOnHand, &v.ReorderLevel, &v.PriceCents, &v.LastRestockedAt, &v.UpdatedAt)
	return v, err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Variant, error) {
	v, err := scanVariant(postgres.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE id = $1`, id))
	if err != nil {
		return domain.Variant{}, postgres.Classify("get variant "+id, err)
	}
	return v, nil
}

func (r *Repository) Save(ctx context.Context, v domain.Variant) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO variants (id, product_id, size, color, quantity_on_hand, reorder_level, price_cents, last_restocked_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			size = EXCLUDED.size,
			color = EXCLUDED.color,
			quantity_on_hand = EXCLUDED.quantity_on_hand,
			reorder_level = EXCLUDED.reorder_level,
			price_cents = EXCLUDED.price_cents,
			last_restocked_at = EXCLUDED.last_restocked_at,
			updated_at = now()`,
		v.ID, v.ProductID, v.Size, v.Color, v.QuantityOnHand, v.ReorderLevel, v.PriceCents, v.LastRestockedAt)
	return postgres.Classify("save variant "+v.ID, err)
}

// Reserve decrements on-hand in one conditional statement so that concurrent
// writers to the same row serialize on the row lock and re-check the guard.
func (r *Repository) Reserve(ctx context.Context, id string, qty int) (domain.Variant, error) {
	db := postgres.Conn(ctx, r.pool)
	v, err := scanVariant(db.QueryRow(ctx, `
		UPDATE variants SET quantity_on_hand = quantity_on_hand - $2, updated_at = now()
		WHERE id = $1 AND quantity_on_hand >= $2
		RETURNING `+variantColumns, id, qty))
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Variant{}, postgres.Classify("reserve "+id, err)
	}

	var onHand int
	if err := db.QueryRow(ctx, `SELECT quantity_on_hand FROM variants WHERE id = $1`, id).Scan(&onHand); err != nil {
		return domain.Variant{}, postgres.Classify("reserve "+id, err)
	}
	return domain.Variant{}, fmt.Errorf("variant %s has %d, want %d: %w", id, onHand, qty, apperr.ErrInsufficientStock)
}

func (r *Repository) Release(ctx context.Context, id string, qty int) (domain.Variant, error) {
	v, err := scanVariant(postgres.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE variants SET quantity_on_hand = quantity_on_hand + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+variantColumns, id, qty))
	if err != nil {
		return domain.Variant{}, postgres.Classify("release "+id, err)
	}
	return v, nil
}

func (r *Repository) Restock(ctx context.Context, id string, qty int, at time.Time) (domain.Variant, error) {
	v, err := scanVariant(postgres.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE variants SET quantity_on_hand = quantity_on_hand + $2, last_restocked_at = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+variantColumns, id, qty, at))
	if err != nil {
		return domain.Variant{}, postgres.Classify("restock "+id, err)
	}
	return v, nil
}

func (r *Repository) SetPrice(ctx context.Context, id string, priceCents int64) error {
	tag, err := postgres.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE variants SET price_cents = $2, updated_at = now() WHERE id = $1`, id, priceCents)
	if err != nil {
		return postgres.Classify("set price "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("variant %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
