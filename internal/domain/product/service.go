package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddInput holds operator-entered data for a new product.
type AddInput struct {
	Name     string          `validate:"required,max=120"`
	Category string          `validate:"max=40"`
	Price    decimal.Decimal `validate:"-"`
	Stock    int             `validate:"gte=0"`
	Image    string
}

// StockLine is one row of the stock report.
type StockLine struct {
	Product Product `json:"product"`
	Low     bool    `json:"low"`
}

// Service implements the menu and stock management workflows.
type Service struct {
	products Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a catalog Service backed by the given repository.
func NewService(products Repository) *Service {
	return &Service{
		products: products,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Add validates the input and stores a new product.
func (s *Service) Add(ctx context.Context, in AddInput) (*Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProduct, err.Error())
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}

	p := &Product{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Category:  ParseCategory(in.Category),
		Price:     in.Price.Round(2),
		Stock:     in.Stock,
		Image:     in.Image,
		CreatedAt: s.now(),
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Delete removes a product. Orders keep their own name and price snapshots.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.products.Delete(ctx, id)
}

// SetStock overwrites the stock count of a product.
func (s *Service) SetStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return ErrInvalidStock
	}
	return s.products.SetStock(ctx, id, stock)
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// List returns the menu, optionally restricted to one category. An empty
// category or "all" returns every product.
func (s *Service) List(ctx context.Context, category string) ([]Product, error) {
	if category == "" || category == "all" {
		return s.products.List(ctx)
	}
	return s.products.ListByCategory(ctx, ParseCategory(category))
}

// StockReport lists every product and flags those below threshold.
func (s *Service) StockReport(ctx context.Context, threshold int) ([]StockLine, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	out := make([]StockLine, len(products))
	for i, p := range products {
		out[i] = StockLine{Product: p, Low: p.Stock < threshold}
	}
	return out, nil
}
