package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/xenking/cafe-pos/internal/domain/table"
)

var _ table.Repository = (*TableRepository)(nil)

// TableRepository implements table.Repository. The tables_by_number bucket
// maps a zero-padded number to the table id, which keeps numbers unique and
// iteration ordered.
type TableRepository struct {
	exec executor
}

func numberKey(n int) []byte {
	return fmt.Appendf(nil, "%010d", n)
}

// List returns all tables ordered by number.
func (r *TableRepository) List(ctx context.Context) ([]table.Table, error) {
	return r.list(func(table.Table) bool { return true })
}

// ListByStatus returns tables in status s ordered by number.
func (r *TableRepository) ListByStatus(ctx context.Context, s table.Status) ([]table.Table, error) {
	return r.list(func(t table.Table) bool { return t.Status == s })
}

func (r *TableRepository) list(keep func(table.Table) bool) ([]table.Table, error) {
	out := []table.Table{}
	err := r.exec.view(func(tx *bbolt.Tx) error {
		tables := tx.Bucket(bucketTables)
		return tx.Bucket(bucketTableNumbers).ForEach(func(_, id []byte) error {
			var t table.Table
			ok, err := getDoc(tables, id, &t)
			if err != nil || !ok {
				return err
			}
			if keep(t) {
				out = append(out, t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return out, nil
}

// GetByID returns a single table.
func (r *TableRepository) GetByID(ctx context.Context, id string) (*table.Table, error) {
	var t table.Table
	err := r.exec.view(func(tx *bbolt.Tx) error {
		ok, err := getDoc(tx.Bucket(bucketTables), []byte(id), &t)
		if err != nil {
			return err
		}
		if !ok {
			return table.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create stores a new table, rejecting a number already in use.
func (r *TableRepository) Create(ctx context.Context, t *table.Table) error {
	return r.exec.update(func(tx *bbolt.Tx) error {
		numbers := tx.Bucket(bucketTableNumbers)
		if numbers.Get(numberKey(t.Number)) != nil {
			return table.ErrDuplicateNumber
		}
		if err := numbers.Put(numberKey(t.Number), []byte(t.ID)); err != nil {
			return err
		}
		return putDoc(tx.Bucket(bucketTables), []byte(t.ID), t)
	})
}

// SetStatus changes the status of a table.
func (r *TableRepository) SetStatus(ctx context.Context, id string, s table.Status) error {
	return r.exec.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTables)
		var t table.Table
		ok, err := getDoc(b, []byte(id), &t)
		if err != nil {
			return err
		}
		if !ok {
			return table.ErrNotFound
		}
		t.Status = s
		return putDoc(b, []byte(id), &t)
	})
}

// Delete removes a free table and frees its number. The status is checked
// in the same write transaction.
func (r *TableRepository) Delete(ctx context.Context, id string) error {
	return r.exec.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTables)
		var t table.Table
		ok, err := getDoc(b, []byte(id), &t)
		if err != nil {
			return err
		}
		if !ok {
			return table.ErrNotFound
		}
		if t.Status == table.StatusOccupied {
			return table.ErrTableOccupied
		}
		if err := tx.Bucket(bucketTableNumbers).Delete(numberKey(t.Number)); err != nil {
			return err
		}
		return b.Delete([]byte(id))
	})
}
