package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidProduct is returned when product input fails validation.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInvalidStock is returned when a stock quantity is negative.
	ErrInvalidStock = errors.New("invalid stock quantity")
)

// Category is the menu section a product is listed under.
type Category string

const (
	CategoryHotDrinks     Category = "hot-drinks"
	CategoryColdDrinks    Category = "cold-drinks"
	CategoryFood          Category = "food"
	CategoryDesserts      Category = "desserts"
	CategoryUncategorized Category = "uncategorized"
)

// Categories lists every known category in menu order.
var Categories = []Category{
	CategoryHotDrinks,
	CategoryColdDrinks,
	CategoryFood,
	CategoryDesserts,
	CategoryUncategorized,
}

// ParseCategory maps free-form input to a known category. Unknown or empty
// values fall back to CategoryUncategorized.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryUncategorized
}

// Product represents a menu item that can be added to an order.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  Category        `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Image     string          `json:"image,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// InStock reports whether at least one unit can be sold.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Repository defines persistence operations for the products collection.
type Repository interface {
	// List returns all products ordered by name.
	List(ctx context.Context) ([]Product, error)
	// ListByCategory returns products of one category ordered by name.
	ListByCategory(ctx context.Context, c Category) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	// SetStock overwrites the stock count.
	SetStock(ctx context.Context, id string, stock int) error
	// AdjustStock adds delta to the stock count and returns the new value.
	// The result is not clamped at zero.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}
