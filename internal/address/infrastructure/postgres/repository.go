package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/checkout-engine/internal/address/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/postgres"
)

const addressColumns = `id, user_id, label, name, phone, street, city, country, is_default, created_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
	tx   *postgres.TxRunner
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool, tx: postgres.NewTxRunner(pool)}
}

func scanAddress(row pgx.Row) (domain.Address, error) {
	var a domain.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Name, &a.Phone, &a.Street, &a.City, &a.Country, &a.IsDefault, &a.CreatedAt)
	return a, err
}

func (r *Repository) Insert(ctx context.Context, a domain.Address) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `INSERT INTO addresses (`+addressColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.UserID, a.Label, a.Name, a.Phone, a.Street, a.City, a.Country, a.IsDefault, a.CreatedAt)
	if postgres.IsUniqueViolation(err, "addresses_one_default_idx") {
		return fmt.Errorf("user %s already has a default address: %w", a.UserID, apperr.ErrConflict)
	}
	return postgres.Classify("insert address", err)
}

// Get share-locks the row, so an address read inside a transaction cannot be
// deleted before that transaction ends.
func (r *Repository) Get(ctx context.Context, userID, id string) (domain.Address, error) {
	a, err := scanAddress(postgres.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2 FOR SHARE`, id, userID))
	if err != nil {
		return domain.Address{}, postgres.Classify("get address "+id, err)
	}
	return a, nil
}

func (r *Repository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := postgres.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC, id`, userID)
	if err != nil {
		return nil, postgres.Classify("list addresses", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Address, error) {
		return scanAddress(row)
	})
	if err != nil {
		return nil, postgres.Classify("list addresses", err)
	}
	return out, nil
}

// SetDefault takes a transaction-scoped advisory lock on the user, clears the
// old default and marks the new one before committing. The partial unique
// index on (user_id) WHERE is_default backs the invariant; it is checked per
// row, so the clear must run first.
func (r *Repository) SetDefault(ctx context.Context, userID, id string) error {
	return r.tx.InTx(ctx, func(ctx context.Context) error {
		db := postgres.Conn(ctx, r.pool)
		if _, err := db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
			return postgres.Classify("lock user addresses", err)
		}
		var owned bool
		if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`, id, userID).Scan(&owned); err != nil {
			return postgres.Classify("set default address", err)
		}
		if !owned {
			return fmt.Errorf("address %s: %w", id, apperr.ErrNotFound)
		}
		if _, err := db.Exec(ctx, `UPDATE addresses SET is_default = false WHERE user_id = $1 AND is_default AND id <> $2`, userID, id); err != nil {
			return postgres.Classify("clear default address", err)
		}
		_, err := db.Exec(ctx, `UPDATE addresses SET is_default = true WHERE id = $1`, id)
		return postgres.Classify("set default address", err)
	})
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	return postgres.Classify("delete address", err)
}

func (r *Repository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM addresses WHERE user_id = $1`, userID)
	return postgres.Classify("delete user addresses", err)
}
