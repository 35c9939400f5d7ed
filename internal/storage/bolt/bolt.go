// Package bolt implements the document store on an embedded bbolt file.
//
// Each collection is a bucket of JSON documents keyed by id. Secondary
// buckets keep table numbers unique and orders sorted by creation time.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.etcd.io/bbolt"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/domain/table"
	"github.com/xenking/cafe-pos/internal/storage"
)

var (
	bucketProducts     = []byte("products")
	bucketTables       = []byte("tables")
	bucketTableNumbers = []byte("tables_by_number")
	bucketOrders       = []byte("orders")
	bucketOrdersByTime = []byte("orders_by_created")
	bucketSettings     = []byte("settings")

	settingsKey = []byte("settings")
)

// collections are wiped by Clear. Settings survive.
var collections = [][]byte{
	bucketProducts,
	bucketTables,
	bucketTableNumbers,
	bucketOrders,
	bucketOrdersByTime,
}

// executor runs bucket access either in its own transaction or inside an
// enclosing one.
type executor interface {
	view(fn func(tx *bbolt.Tx) error) error
	update(fn func(tx *bbolt.Tx) error) error
}

type dbExec struct{ db *bbolt.DB }

func (e dbExec) view(fn func(tx *bbolt.Tx) error) error   { return e.db.View(fn) }
func (e dbExec) update(fn func(tx *bbolt.Tx) error) error { return e.db.Update(fn) }

type txExec struct{ tx *bbolt.Tx }

func (e txExec) view(fn func(tx *bbolt.Tx) error) error   { return fn(e.tx) }
func (e txExec) update(fn func(tx *bbolt.Tx) error) error { return fn(e.tx) }

// Store is a bbolt-backed document store.
type Store struct {
	db   *bbolt.DB
	exec executor
}

var (
	_ order.Store    = (*Store)(nil)
	_ storage.Viewer = (*Store)(nil)
)

// Open opens or creates the database file at path. timeout bounds waiting
// for the file lock held by another process.
func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketProducts, bucketTables, bucketTableNumbers,
			bucketOrders, bucketOrdersByTime, bucketSettings,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, exec: dbExec{db: db}}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.db.Path()
}

func (s *Store) Products() product.Repository { return &ProductRepository{exec: s.exec} }
func (s *Store) Tables() table.Repository     { return &TableRepository{exec: s.exec} }
func (s *Store) Orders() order.Repository     { return &OrderRepository{exec: s.exec} }
func (s *Store) Settings() settings.Repository {
	return &SettingsRepository{exec: s.exec}
}

// Atomic runs fn in a single read-write transaction. Calls made through tx
// share it; nested Atomic calls join the enclosing transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx order.Store) error) error {
	if _, nested := s.exec.(txExec); nested {
		return fn(ctx, s)
	}
	return s.db.Update(func(btx *bbolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, &Store{db: s.db, exec: txExec{tx: btx}})
	})
}

// View runs fn in a single read-only transaction.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, c storage.Collections) error) error {
	if _, nested := s.exec.(txExec); nested {
		return fn(ctx, s)
	}
	return s.db.View(func(btx *bbolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, &Store{db: s.db, exec: txExec{tx: btx}})
	})
}

// Ping verifies the database file is readable.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketOrders) == nil {
			return errors.New("orders bucket missing")
		}
		return nil
	})
}

// Clear deletes all products, tables and orders.
func (s *Store) Clear(_ context.Context) error {
	return s.exec.update(func(tx *bbolt.Tx) error {
		for _, name := range collections {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("deleting bucket %s: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func getDoc(b *bbolt.Bucket, key []byte, v any) (bool, error) {
	data := b.Get(key)
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func putDoc(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return b.Put(key, data)
}

func forEachDoc[T any](b *bbolt.Bucket, fn func(T) error) error {
	return b.ForEach(func(k, data []byte) error {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decoding %s: %w", k, err)
		}
		return fn(v)
	})
}
