package table

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service implements the table management workflows.
type Service struct {
	tables Repository
	now    func() time.Time
}

// NewService creates a table Service backed by the given repository.
func NewService(tables Repository) *Service {
	return &Service{tables: tables, now: time.Now}
}

// Add creates a free table with the given number.
func (s *Service) Add(ctx context.Context, number int) (*Table, error) {
	if number <= 0 {
		return nil, ErrInvalidNumber
	}
	t := &Table{
		ID:        uuid.New().String(),
		Number:    number,
		Status:    StatusFree,
		CreatedAt: s.now(),
	}
	if err := s.tables.Create(ctx, t); err != nil {
		return nil, errors.Wrapf(err, "create table %d", number)
	}
	return t, nil
}

// Delete removes a free table. Occupied tables are rejected with
// ErrTableOccupied.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.tables.Delete(ctx, id)
}

// List returns every table ordered by number.
func (s *Service) List(ctx context.Context) ([]Table, error) {
	return s.tables.List(ctx)
}

// ListOccupied returns the tables awaiting payment.
func (s *Service) ListOccupied(ctx context.Context) ([]Table, error) {
	return s.tables.ListByStatus(ctx, StatusOccupied)
}

// Get returns a single table.
func (s *Service) Get(ctx context.Context, id string) (*Table, error) {
	return s.tables.GetByID(ctx, id)
}
