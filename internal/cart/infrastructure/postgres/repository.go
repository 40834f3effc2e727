package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/checkout-engine/internal/cart/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/postgres"
)

const lineColumns = `id, user_id, variant_id, quantity, unit_price_cents, added_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func scanLine(row pgx.Row) (domain.Line, error) {
	var l domain.Line
	err := row.Scan(&l.ID, &l.UserID, &l.VariantID, &l.Quantity, &l.UnitPriceCents, &l.AddedAt, &l.UpdatedAt)
	return l, err
}

func (r *Repository) Find(ctx context.Context, userID, variantID string) (domain.Line, error) {
	l, err := scanLine(postgres.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+lineColumns+` FROM cart_lines WHERE user_id = $1 AND variant_id = $2`, userID, variantID))
	if err != nil {
		return domain.Line{}, postgres.Classify("find cart line", err)
	}
	return l, nil
}

func (r *Repository) Get(ctx context.Context, userID, lineID string) (domain.Line, error) {
	l, err := scanLine(postgres.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+lineColumns+` FROM cart_lines WHERE id = $1 AND user_id = $2`, lineID, userID))
	if err != nil {
		return domain.Line{}, postgres.Classify("get cart line "+lineID, err)
	}
	return l, nil
}

func (r *Repository) Merge(ctx context.Context, line domain.Line) (domain.Line, error) {
	l, err := scanLine(postgres.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO cart_lines (`+lineColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT ON CONSTRAINT cart_lines_user_variant_key DO UPDATE SET
			quantity = cart_lines.quantity + EXCLUDED.quantity,
			unit_price_cents = EXCLUDED.unit_price_cents,
			updated_at = EXCLUDED.updated_at
		RETURNING `+lineColumns,
		line.ID, line.UserID, line.VariantID, line.Quantity, line.UnitPriceCents, line.AddedAt, line.UpdatedAt))
	if err != nil {
		return domain.Line{}, classifyFK("merge cart line", line.VariantID, err)
	}
	return l, nil
}

func (r *Repository) SetQuantity(ctx context.Context, userID, lineID string, qty int, at time.Time) (domain.Line, error) {
	l, err := scanLine(postgres.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE cart_lines SET quantity = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
		RETURNING `+lineColumns, lineID, userID, qty, at))
	if err != nil {
		return domain.Line{}, postgres.Classify("update cart line "+lineID, err)
	}
	return l, nil
}

func (r *Repository) Delete(ctx context.Context, userID, lineID string) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND user_id = $2`, lineID, userID)
	return postgres.Classify("delete cart line", err)
}

func (r *Repository) Clear(ctx context.Context, userID string) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	return postgres.Classify("clear cart", err)
}

func (r *Repository) List(ctx context.Context, userID string) ([]domain.Line, error) {
	rows, err := postgres.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+lineColumns+` FROM cart_lines WHERE user_id = $1 ORDER BY added_at, id`, userID)
	if err != nil {
		return nil, postgres.Classify("list cart", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Line, error) {
		return scanLine(row)
	})
	if err != nil {
		return nil, postgres.Classify("list cart", err)
	}
	return lines, nil
}

func classifyFK(op, variantID string, err error) error {
	if postgres.IsForeignKeyViolation(err) {
		return fmt.Errorf("variant %s: %w", variantID, apperr.ErrNotFound)
	}
	return postgres.Classify(op, err)
}
