package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/cafe-pos/internal/domain/order"
)

const (
	orderColumns = `id, table_id, table_number, items, total, status, created_at, paid_at, cashier`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listActiveByTableSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE table_id = $1 AND status = 'active' ORDER BY created_at, id`

	markPaidSQL = `UPDATE orders SET status = 'paid', paid_at = GREATEST($2, created_at), cashier = $3
		WHERE id = ANY($1) AND status = 'active'`

	listPaidSinceSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE status = 'paid' AND created_at >= $1 ORDER BY created_at, id`

	recentOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC LIMIT $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at, id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	q querier
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.q.Exec(ctx, insertOrderSQL,
		o.ID, o.TableID, o.TableNumber, itemsJSON, o.Total,
		string(o.Status), o.CreatedAt, o.PaidAt, o.Cashier,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.q.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListActiveByTable returns active orders of one table, oldest first.
func (r *OrderRepository) ListActiveByTable(ctx context.Context, tableID string) ([]order.Order, error) {
	return r.collect(ctx, "listing active orders", listActiveByTableSQL, tableID)
}

// MarkPaid flips active orders to paid and returns how many changed.
func (r *OrderRepository) MarkPaid(ctx context.Context, ids []string, paidAt time.Time, cashier string) (int, error) {
	tag, err := r.q.Exec(ctx, markPaidSQL, ids, paidAt, cashier)
	if err != nil {
		return 0, fmt.Errorf("marking orders paid: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListPaidSince returns paid orders created at or after since, oldest first.
func (r *OrderRepository) ListPaidSince(ctx context.Context, since time.Time) ([]order.Order, error) {
	return r.collect(ctx, "listing paid orders", listPaidSinceSQL, since)
}

// Recent returns the latest orders, newest first.
func (r *OrderRepository) Recent(ctx context.Context, limit int) ([]order.Order, error) {
	return r.collect(ctx, "listing recent orders", recentOrdersSQL, limit)
}

// List returns every order, oldest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.collect(ctx, "listing orders", listOrdersSQL)
}

func (r *OrderRepository) collect(ctx context.Context, op, query string, args ...any) ([]order.Order, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		items  []byte
		status string
	)
	err := row.Scan(
		&o.ID, &o.TableID, &o.TableNumber, &items, &o.Total,
		&status, &o.CreatedAt, &o.PaidAt, &o.Cashier,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	return o, nil
}
