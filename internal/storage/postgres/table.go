package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/cafe-pos/internal/domain/table"
)

const (
	tableColumns = `id, number, status, created_at`

	listTablesSQL = `SELECT ` + tableColumns + ` FROM dining_tables ORDER BY number`

	listTablesByStatusSQL = `SELECT ` + tableColumns + `
		FROM dining_tables WHERE status = $1 ORDER BY number`

	getTableByIDSQL = `SELECT ` + tableColumns + ` FROM dining_tables WHERE id = $1`

	insertTableSQL = `INSERT INTO dining_tables (` + tableColumns + `) VALUES ($1, $2, $3, $4)`

	setTableStatusSQL = `UPDATE dining_tables SET status = $2 WHERE id = $1`

	deleteFreeTableSQL = `DELETE FROM dining_tables WHERE id = $1 AND status = 'free'`

	tableExistsSQL = `SELECT EXISTS (SELECT 1 FROM dining_tables WHERE id = $1)`

	uniqueViolation = "23505"
)

var _ table.Repository = (*TableRepository)(nil)

// TableRepository implements table.Repository backed by PostgreSQL. With
// lock set, GetByID takes a row lock for the rest of the transaction.
type TableRepository struct {
	q    querier
	lock bool
}

// List returns every table ordered by number.
func (r *TableRepository) List(ctx context.Context) ([]table.Table, error) {
	rows, err := r.q.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return pgx.CollectRows(rows, scanTable)
}

// ListByStatus returns tables in one status ordered by number.
func (r *TableRepository) ListByStatus(ctx context.Context, s table.Status) ([]table.Table, error) {
	rows, err := r.q.Query(ctx, listTablesByStatusSQL, string(s))
	if err != nil {
		return nil, fmt.Errorf("listing %s tables: %w", s, err)
	}
	return pgx.CollectRows(rows, scanTable)
}

// GetByID returns a single table.
func (r *TableRepository) GetByID(ctx context.Context, id string) (*table.Table, error) {
	query := getTableByIDSQL
	if r.lock {
		query += ` FOR UPDATE`
	}
	rows, err := r.q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting table %q: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, table.ErrNotFound
		}
		return nil, fmt.Errorf("getting table %q: %w", id, err)
	}
	return &t, nil
}

// Create inserts a table, mapping a number clash to table.ErrDuplicateNumber.
func (r *TableRepository) Create(ctx context.Context, t *table.Table) error {
	_, err := r.q.Exec(ctx, insertTableSQL, t.ID, t.Number, string(t.Status), t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return table.ErrDuplicateNumber
		}
		return fmt.Errorf("creating table %d: %w", t.Number, err)
	}
	return nil
}

// SetStatus changes the status of a table.
func (r *TableRepository) SetStatus(ctx context.Context, id string, s table.Status) error {
	tag, err := r.q.Exec(ctx, setTableStatusSQL, id, string(s))
	if err != nil {
		return fmt.Errorf("setting status of table %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return table.ErrNotFound
	}
	return nil
}

// Delete removes a free table. The status condition is part of the DELETE,
// so a completion holding the row lock makes it wait and then match nothing.
func (r *TableRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, deleteFreeTableSQL, id)
	if err != nil {
		return fmt.Errorf("deleting table %q: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.q.QueryRow(ctx, tableExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking table %q: %w", id, err)
	}
	if exists {
		return table.ErrTableOccupied
	}
	return table.ErrNotFound
}

func scanTable(row pgx.CollectableRow) (table.Table, error) {
	var (
		t      table.Table
		status string
	)
	err := row.Scan(&t.ID, &t.Number, &status, &t.CreatedAt)
	t.Status = table.Status(status)
	return t, err
}
