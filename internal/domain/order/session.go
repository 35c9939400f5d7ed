package order

import (
	"context"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/table"
)

// Session is the state of one register: the draft being built and the
// cashier taking payments. It is owned by the caller and passed explicitly to
// register and lifecycle operations.
type Session struct {
	Draft   *Draft
	cashier string
}

// NewSession returns a session with an empty draft and no cashier.
func NewSession() *Session {
	return &Session{Draft: NewDraft()}
}

// Cashier returns the selected cashier or "".
func (s *Session) Cashier() string { return s.cashier }

// Register resolves tables and products for draft operations.
type Register struct {
	products product.Repository
	tables   table.Repository
	cashiers []string
}

// NewRegister creates a Register. When cashiers is non-empty, SelectCashier
// only accepts names from it.
func NewRegister(products product.Repository, tables table.Repository, cashiers []string) *Register {
	return &Register{
		products: products,
		tables:   tables,
		cashiers: cashiers,
	}
}

// Cashiers returns the configured roster.
func (r *Register) Cashiers() []string {
	return slices.Clone(r.cashiers)
}

// SelectTable points the session draft at tableID. An unknown table leaves
// the draft untouched and reports false without an error.
func (r *Register) SelectTable(ctx context.Context, s *Session, tableID string) (bool, error) {
	if _, err := r.tables.GetByID(ctx, tableID); err != nil {
		if errors.Is(err, table.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "get table")
	}
	s.Draft.SelectTable(tableID)
	return true, nil
}

// AddLine adds one unit of a product to the session draft.
func (r *Register) AddLine(ctx context.Context, s *Session, productID string) error {
	if s.Draft.TableID() == "" {
		return ErrNoTableSelected
	}
	p, err := r.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return &ProductNotFoundError{ProductID: productID}
		}
		return errors.Wrap(err, "get product")
	}
	if !p.InStock() {
		return &OutOfStockError{ProductID: p.ID, Name: p.Name}
	}
	s.Draft.Add(*p)
	return nil
}

// SelectCashier sets the cashier stamped on subsequent payments.
func (r *Register) SelectCashier(s *Session, name string) error {
	if name == "" {
		return ErrNoCashierSelected
	}
	if len(r.cashiers) > 0 && !slices.Contains(r.cashiers, name) {
		return errors.Wrapf(ErrUnknownCashier, "cashier %q", name)
	}
	s.cashier = name
	return nil
}
