// Package postgres implements the document store on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cafe-pos/db"
	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/domain/table"
	"github.com/xenking/cafe-pos/internal/storage"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed document store.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

var (
	_ order.Store    = (*Store)(nil)
	_ storage.Viewer = (*Store)(nil)
)

// NewStore returns a Store over pool. The pool is owned by the caller
// unless Close is called.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Products() product.Repository { return &ProductRepository{q: s.q} }
func (s *Store) Tables() table.Repository {
	return &TableRepository{q: s.q, lock: s.inTx}
}
func (s *Store) Orders() order.Repository { return &OrderRepository{q: s.q} }
func (s *Store) Settings() settings.Repository {
	return &SettingsRepository{q: s.q}
}

// Atomic runs fn in a read-committed transaction. Inside it table rows are
// read with FOR UPDATE so concurrent lifecycle calls from other processes
// queue on the same table.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx order.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &Store{pool: s.pool, q: tx, inTx: true})
	})
}

// View runs fn in a read-only repeatable-read transaction, so every query
// sees the same snapshot.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, c storage.Collections) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(ctx, &Store{pool: s.pool, q: tx})
	})
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Clear deletes all products, tables and orders.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, `TRUNCATE products, dining_tables, orders`); err != nil {
		return fmt.Errorf("clearing collections: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
