package table

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested table does not exist.
	ErrNotFound = errors.New("table not found")
	// ErrDuplicateNumber is returned when a table number is already taken.
	ErrDuplicateNumber = errors.New("table number already exists")
	// ErrInvalidNumber is returned for non-positive table numbers.
	ErrInvalidNumber = errors.New("table number must be positive")
	// ErrTableOccupied is returned when deleting a table that has open orders.
	ErrTableOccupied = errors.New("table is occupied")
	// ErrIllegalTransition is returned when a status change is not allowed.
	ErrIllegalTransition = errors.New("illegal table status transition")
)

// Status is the occupancy state of a table.
type Status string

const (
	StatusFree     Status = "free"
	StatusOccupied Status = "occupied"
)

// transitions enumerates every allowed status change. An occupied table may
// be occupied again when a further order is placed for it.
var transitions = map[Status][]Status{
	StatusFree:     {StatusOccupied},
	StatusOccupied: {StatusOccupied, StatusFree},
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("table status %s -> %s not allowed", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// CanTransition reports whether s may change to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next when the change is allowed.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, &TransitionError{From: s, To: next}
	}
	return next, nil
}

// Table is a seating position in the restaurant.
type Table struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository defines persistence operations for the tables collection.
type Repository interface {
	// List returns all tables ordered by number.
	List(ctx context.Context) ([]Table, error)
	// ListByStatus returns tables in one status ordered by number.
	ListByStatus(ctx context.Context, s Status) ([]Table, error)
	GetByID(ctx context.Context, id string) (*Table, error)
	// Create stores a new table, returning ErrDuplicateNumber on a number clash.
	Create(ctx context.Context, t *Table) error
	SetStatus(ctx context.Context, id string, s Status) error
	// Delete removes a free table. The status check and the delete happen
	// atomically; an occupied table yields ErrTableOccupied.
	Delete(ctx context.Context, id string) error
}
