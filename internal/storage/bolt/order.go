package bolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/xenking/cafe-pos/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository. Orders are indexed by
// creation time in orders_by_created so range and recency queries walk a
// cursor instead of the whole bucket.
type OrderRepository struct {
	exec executor
}

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func timeKey(t time.Time, id string) []byte {
	return []byte(t.UTC().Format(timeLayout) + "/" + id)
}

// Create stores a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.exec.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		if b.Get([]byte(o.ID)) != nil {
			return fmt.Errorf("order %q already exists", o.ID)
		}
		if err := putDoc(b, []byte(o.ID), o); err != nil {
			return err
		}
		return tx.Bucket(bucketOrdersByTime).Put(timeKey(o.CreatedAt, o.ID), []byte(o.ID))
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	err := r.exec.view(func(tx *bbolt.Tx) error {
		ok, err := getDoc(tx.Bucket(bucketOrders), []byte(id), &o)
		if err != nil {
			return err
		}
		if !ok {
			return order.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListActiveByTable returns active orders of a table, oldest first.
func (r *OrderRepository) ListActiveByTable(ctx context.Context, tableID string) ([]order.Order, error) {
	return r.scan(nil, func(o order.Order) bool {
		return o.TableID == tableID && o.Status == order.StatusActive
	})
}

// ListPaidSince returns paid orders created at or after since, oldest first.
func (r *OrderRepository) ListPaidSince(ctx context.Context, since time.Time) ([]order.Order, error) {
	return r.scan([]byte(since.UTC().Format(timeLayout)), func(o order.Order) bool {
		return o.Status == order.StatusPaid
	})
}

// List returns every order, oldest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.scan(nil, func(order.Order) bool { return true })
}

// scan walks the time index from start, or from the beginning when start is
// nil.
func (r *OrderRepository) scan(start []byte, keep func(order.Order) bool) ([]order.Order, error) {
	out := []order.Order{}
	err := r.exec.view(func(tx *bbolt.Tx) error {
		orders := tx.Bucket(bucketOrders)
		c := tx.Bucket(bucketOrdersByTime).Cursor()

		var k, id []byte
		if start == nil {
			k, id = c.First()
		} else {
			k, id = c.Seek(start)
		}
		for ; k != nil; k, id = c.Next() {
			var o order.Order
			ok, err := getDoc(orders, id, &o)
			if err != nil {
				return err
			}
			if ok && keep(o) {
				out = append(out, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return out, nil
}

// Recent returns the latest orders, newest first.
func (r *OrderRepository) Recent(ctx context.Context, limit int) ([]order.Order, error) {
	out := []order.Order{}
	err := r.exec.view(func(tx *bbolt.Tx) error {
		orders := tx.Bucket(bucketOrders)
		c := tx.Bucket(bucketOrdersByTime).Cursor()
		for k, id := c.Last(); k != nil && len(out) < limit; k, id = c.Prev() {
			var o order.Order
			ok, err := getDoc(orders, id, &o)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing recent orders: %w", err)
	}
	return out, nil
}

// MarkPaid moves active orders to paid and returns how many changed.
func (r *OrderRepository) MarkPaid(ctx context.Context, ids []string, paidAt time.Time, cashier string) (int, error) {
	n := 0
	err := r.exec.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		for _, id := range ids {
			var o order.Order
			ok, err := getDoc(b, []byte(id), &o)
			if err != nil {
				return err
			}
			if !ok || o.Status != order.StatusActive {
				continue
			}
			if err := o.Pay(paidAt, cashier); err != nil {
				return err
			}
			if err := putDoc(b, []byte(id), &o); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("marking orders paid: %w", err)
	}
	return n, nil
}
