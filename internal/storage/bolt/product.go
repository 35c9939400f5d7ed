package bolt

import (
	"context"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/xenking/cafe-pos/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository on the products bucket.
type ProductRepository struct {
	exec executor
}

// List returns all products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	return r.list(func(product.Product) bool { return true })
}

// ListByCategory returns products of category c ordered by name.
func (r *ProductRepository) ListByCategory(ctx context.Context, c product.Category) ([]product.Product, error) {
	return r.list(func(p product.Product) bool { return p.Category == c })
}

func (r *ProductRepository) list(keep func(product.Product) bool) ([]product.Product, error) {
	out := []product.Product{}
	err := r.exec.view(func(tx *bbolt.Tx) error {
		return forEachDoc(tx.Bucket(bucketProducts), func(p product.Product) error {
			if keep(p) {
				out = append(out, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	err := r.exec.view(func(tx *bbolt.Tx) error {
		ok, err := getDoc(tx.Bucket(bucketProducts), []byte(id), &p)
		if err != nil {
			return err
		}
		if !ok {
			return product.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create stores a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.exec.update(func(tx *bbolt.Tx) error {
		return putDoc(tx.Bucket(bucketProducts), []byte(p.ID), p)
	})
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	return r.exec.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		if b.Get([]byte(id)) == nil {
			return product.ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

// SetStock overwrites the stock count.
func (r *ProductRepository) SetStock(ctx context.Context, id string, stock int) error {
	return r.exec.update(func(tx *bbolt.Tx) error {
		return r.modify(tx, id, func(p *product.Product) { p.Stock = stock })
	})
}

// AdjustStock adds delta to the stock count and returns the new value.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var stock int
	err := r.exec.update(func(tx *bbolt.Tx) error {
		return r.modify(tx, id, func(p *product.Product) {
			p.Stock += delta
			stock = p.Stock
		})
	})
	return stock, err
}

func (r *ProductRepository) modify(tx *bbolt.Tx, id string, fn func(p *product.Product)) error {
	b := tx.Bucket(bucketProducts)
	var p product.Product
	ok, err := getDoc(b, []byte(id), &p)
	if err != nil {
		return err
	}
	if !ok {
		return product.ErrNotFound
	}
	fn(&p)
	return putDoc(b, []byte(id), &p)
}
