// Package storage holds the contracts shared by the document store engines.
package storage

import (
	"context"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/domain/table"
)

// Collections gives access to every collection of a store.
type Collections interface {
	Products() product.Repository
	Tables() table.Repository
	Orders() order.Repository
	Settings() settings.Repository
}

// Viewer runs fn against a read-only view in which all collections reflect
// the same instant.
type Viewer interface {
	View(ctx context.Context, fn func(ctx context.Context, c Collections) error) error
}
