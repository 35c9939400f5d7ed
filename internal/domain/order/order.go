package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the payment state of a persisted order.
type Status string

const (
	StatusActive Status = "active"
	StatusPaid   Status = "paid"
)

// transitions enumerates every allowed order status change. Paid is terminal.
var transitions = map[Status][]Status{
	StatusActive: {StatusPaid},
}

// TransitionError describes a rejected order status change.
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: status %s -> %s not allowed", e.OrderID, e.From, e.To)
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

// LineItem is one product entry of an order. Name and Price are snapshots
// taken when the product was added and never follow later catalog edits.
type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price × quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a placed order for a table.
type Order struct {
	ID          string          `json:"id"`
	TableID     string          `json:"tableId"`
	TableNumber int             `json:"tableNumber"`
	Items       []LineItem      `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
	Cashier     string          `json:"cashier,omitempty"`
}

// Pay moves the order to paid, stamping the cashier and payment time. The
// payment time is never earlier than the creation time.
func (o *Order) Pay(at time.Time, cashier string) error {
	if !o.Status.CanTransition(StatusPaid) {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: StatusPaid}
	}
	if at.Before(o.CreatedAt) {
		at = o.CreatedAt
	}
	o.Status = StatusPaid
	o.PaidAt = &at
	o.Cashier = cashier
	return nil
}

// matches reports whether o was placed from a draft with the given table,
// lines and total.
func (o *Order) matches(tableID string, lines []LineItem, total decimal.Decimal) bool {
	if o.TableID != tableID || !o.Total.Equal(total) || len(o.Items) != len(lines) {
		return false
	}
	for i, it := range o.Items {
		l := lines[i]
		if it.ProductID != l.ProductID || it.Quantity != l.Quantity || !it.Price.Equal(l.Price) {
			return false
		}
	}
	return true
}

// SumItems returns Σ(price × quantity) rounded to currency precision.
func SumItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total.Round(2)
}

// SumTotals returns the combined total of orders.
func SumTotals(orders []Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Total)
	}
	return total.Round(2)
}

// Repository defines persistence operations for the orders collection.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListActiveByTable returns active orders of one table, oldest first.
	ListActiveByTable(ctx context.Context, tableID string) ([]Order, error)
	// MarkPaid flips the given orders from active to paid and returns how many
	// were updated. Orders not in active status are left untouched.
	MarkPaid(ctx context.Context, ids []string, paidAt time.Time, cashier string) (int, error)
	// ListPaidSince returns paid orders created at or after since, oldest first.
	ListPaidSince(ctx context.Context, since time.Time) ([]Order, error)
	// Recent returns the latest orders, newest first.
	Recent(ctx context.Context, limit int) ([]Order, error)
	// List returns every order, oldest first.
	List(ctx context.Context) ([]Order, error)
}
