package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/checkout-engine/internal/order/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/postgres"
)

const orderColumns = `id, number, user_id, subtotal_cents, tax_cents, shipping_cents, total_cents,
	shipping_address_id, billing_address_id, payment_method, status, tracking_number, ordered_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
		&o.ShippingAddressID, &o.BillingAddressID, &o.PaymentMethod, &o.Status, &o.TrackingNumber, &o.OrderedAt, &o.UpdatedAt)
	return o, err
}

// Insert writes the header and all lines. It relies on the caller's
// transaction for atomicity.
func (r *Repository) Insert(ctx context.Context, o domain.Order) error {
	db := postgres.Conn(ctx, r.pool)

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO orders (`+orderColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.Number, o.UserID, o.SubtotalCents, o.TaxCents, o.ShippingCents, o.TotalCents,
		o.ShippingAddressID, o.BillingAddressID, o.PaymentMethod, o.Status, o.TrackingNumber, o.OrderedAt, o.UpdatedAt)
	for i, l := range o.Lines {
		batch.Queue(`INSERT INTO order_lines (order_id, line_no, variant_id, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, i, l.VariantID, l.Quantity, l.UnitPriceCents, l.SubtotalCents)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return postgres.Classify("insert order", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	db := postgres.Conn(ctx, r.pool)
	o, err := scanOrder(db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return domain.Order{}, postgres.Classify("get order "+id, err)
	}
	lines, err := r.lines(ctx, db, []string{id})
	if err != nil {
		return domain.Order{}, err
	}
	o.Lines = lines[id]
	return o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string, f domain.ListFilter) ([]domain.Order, int, error) {
	db := postgres.Conn(ctx, r.pool)

	var total int
	if err := db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1 AND ($2 = '' OR status = $2)`,
		userID, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, postgres.Classify("count orders", err)
	}

	rows, err := db.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY ordered_at DESC, id
		LIMIT $3 OFFSET $4`, userID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, postgres.Classify("list orders", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, 0, postgres.Classify("list orders", err)
	}
	if len(orders) == 0 {
		return nil, total, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	lines, err := r.lines(ctx, db, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, total, nil
}

func (r *Repository) lines(ctx context.Context, db postgres.DBTX, orderIDs []string) (map[string][]domain.Line, error) {
	rows, err := db.Query(ctx, `SELECT order_id, variant_id, quantity, unit_price_cents, subtotal_cents
		FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, line_no`, orderIDs)
	if err != nil {
		return nil, postgres.Classify("order lines", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Line, len(orderIDs))
	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.OrderID, &l.VariantID, &l.Quantity, &l.UnitPriceCents, &l.SubtotalCents); err != nil {
			return nil, postgres.Classify("order lines", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Classify("order lines", err)
	}
	return out, nil
}

func (r *Repository) Transition(ctx context.Context, id string, from, to domain.Status, tracking string, at time.Time) (bool, error) {
	db := postgres.Conn(ctx, r.pool)
	tag, err := db.Exec(ctx, `
		UPDATE orders
		SET status = $3,
			tracking_number = CASE WHEN $4 = '' THEN tracking_number ELSE $4 END,
			updated_at = $5
		WHERE id = $1 AND status = $2`,
		id, from, to, tracking, at)
	if err != nil {
		return false, postgres.Classify("transition order", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, postgres.Classify("transition order", err)
	}
	if !exists {
		return false, postgres.Classify("transition order "+id, pgx.ErrNoRows)
	}
	return false, nil
}
