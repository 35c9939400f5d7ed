package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Operator-facing failures of draft and lifecycle operations.
var (
	ErrNoTableSelected   = errors.New("no table selected")
	ErrProductNotFound   = errors.New("product not found")
	ErrOutOfStock        = errors.New("product out of stock")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrTableNotFound     = errors.New("table not found")
	ErrNoCashierSelected = errors.New("no cashier selected")
	ErrUnknownCashier    = errors.New("unknown cashier")
	ErrNoActiveOrder     = errors.New("no active order for table")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrIllegalTransition = errors.New("illegal order status transition")
	ErrNotFound          = errors.New("order not found")
	ErrDraftChanged      = errors.New("draft changed after its order was committed")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error {
	return ErrProductNotFound
}

// OutOfStockError indicates a product with no stock left.
type OutOfStockError struct {
	ProductID string
	Name      string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %q is out of stock", e.Name)
}

func (e *OutOfStockError) Unwrap() error {
	return ErrOutOfStock
}
