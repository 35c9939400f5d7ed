package order

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/table"
)

// --- Mock implementations ---

// memState is the data behind memStore. Atomic works on a copy and swaps it
// in only when fn succeeds.
type memState struct {
	products map[string]product.Product
	tables   map[string]table.Table
	orders   map[string]Order
}

func (s *memState) clone() *memState {
	c := &memState{
		products: maps.Clone(s.products),
		tables:   maps.Clone(s.tables),
		orders:   make(map[string]Order, len(s.orders)),
	}
	for id, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		c.orders[id] = o
	}
	return c
}

type memStore struct {
	mu    sync.Mutex
	state *memState

	// hooks for failure injection
	createErr    error
	setStatusErr error
	atomicDelay  time.Duration
	atomicCalls  int

	// reads made by the last Atomic call, in order
	txReads []string
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		products: map[string]product.Product{},
		tables:   map[string]table.Table{},
		orders:   map[string]Order{},
	}}
}

func (m *memStore) addProduct(id, name, price string, stock int) product.Product {
	p := product.Product{
		ID:       id,
		Name:     name,
		Category: product.CategoryHotDrinks,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
	m.state.products[id] = p
	return p
}

func (m *memStore) addTable(id string, number int, status table.Status) {
	m.state.tables[id] = table.Table{ID: id, Number: number, Status: status}
}

func (m *memStore) Products() product.Repository { return memProducts{m: m, s: m.state} }
func (m *memStore) Tables() table.Repository     { return memTables{m: m, s: m.state} }
func (m *memStore) Orders() Repository           { return memOrders{m: m, s: m.state} }

func (m *memStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.atomicCalls++

	if m.atomicDelay > 0 {
		select {
		case <-time.After(m.atomicDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tx := &memTx{m: m, s: m.state.clone()}
	defer func() { m.txReads = tx.reads }()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.s
	return nil
}

type memTx struct {
	m     *memStore
	s     *memState
	reads []string
}

func (t *memTx) Products() product.Repository { return memProducts{m: t.m, s: t.s} }
func (t *memTx) Tables() table.Repository     { return memTables{m: t.m, s: t.s, tx: t} }
func (t *memTx) Orders() Repository           { return memOrders{m: t.m, s: t.s, tx: t} }
func (t *memTx) read(what string) {
	if t != nil {
		t.reads = append(t.reads, what)
	}
}

func (t *memTx) Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, t)
}

type memProducts struct {
	m *memStore
	s *memState
}

func (r memProducts) List(context.Context) ([]product.Product, error) {
	return slices.Collect(maps.Values(r.s.products)), nil
}

func (r memProducts) ListByCategory(_ context.Context, c product.Category) ([]product.Product, error) {
	var out []product.Product
	for _, p := range r.s.products {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r memProducts) Create(_ context.Context, p *product.Product) error {
	r.s.products[p.ID] = *p
	return nil
}

func (r memProducts) Delete(_ context.Context, id string) error {
	delete(r.s.products, id)
	return nil
}

func (r memProducts) SetStock(_ context.Context, id string, stock int) error {
	p, ok := r.s.products[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Stock = stock
	r.s.products[id] = p
	return nil
}

func (r memProducts) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	p, ok := r.s.products[id]
	if !ok {
		return 0, product.ErrNotFound
	}
	p.Stock += delta
	r.s.products[id] = p
	return p.Stock, nil
}

type memTables struct {
	m  *memStore
	s  *memState
	tx *memTx
}

func (r memTables) List(context.Context) ([]table.Table, error) {
	return slices.Collect(maps.Values(r.s.tables)), nil
}

func (r memTables) ListByStatus(_ context.Context, st table.Status) ([]table.Table, error) {
	var out []table.Table
	for _, t := range r.s.tables {
		if t.Status == st {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTables) GetByID(_ context.Context, id string) (*table.Table, error) {
	r.tx.read("table " + id)
	t, ok := r.s.tables[id]
	if !ok {
		return nil, table.ErrNotFound
	}
	return &t, nil
}

func (r memTables) Create(_ context.Context, t *table.Table) error {
	r.s.tables[t.ID] = *t
	return nil
}

func (r memTables) SetStatus(_ context.Context, id string, st table.Status) error {
	if r.m.setStatusErr != nil {
		return r.m.setStatusErr
	}
	t, ok := r.s.tables[id]
	if !ok {
		return table.ErrNotFound
	}
	t.Status = st
	r.s.tables[id] = t
	return nil
}

func (r memTables) Delete(_ context.Context, id string) error {
	t, ok := r.s.tables[id]
	if !ok {
		return table.ErrNotFound
	}
	if t.Status == table.StatusOccupied {
		return table.ErrTableOccupied
	}
	delete(r.s.tables, id)
	return nil
}

type memOrders struct {
	m  *memStore
	s  *memState
	tx *memTx
}

func (r memOrders) Create(_ context.Context, o *Order) error {
	if r.m.createErr != nil {
		return r.m.createErr
	}
	r.s.orders[o.ID] = *o
	return nil
}

func (r memOrders) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r memOrders) ListActiveByTable(_ context.Context, tableID string) ([]Order, error) {
	r.tx.read("active orders " + tableID)
	var out []Order
	for _, o := range r.s.orders {
		if o.TableID == tableID && o.Status == StatusActive {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memOrders) MarkPaid(_ context.Context, ids []string, paidAt time.Time, cashier string) (int, error) {
	n := 0
	for _, id := range ids {
		o, ok := r.s.orders[id]
		if !ok || o.Status != StatusActive {
			continue
		}
		at := paidAt
		o.Status = StatusPaid
		o.PaidAt = &at
		o.Cashier = cashier
		r.s.orders[id] = o
		n++
	}
	return n, nil
}

func (r memOrders) ListPaidSince(_ context.Context, since time.Time) ([]Order, error) {
	var out []Order
	for _, o := range r.s.orders {
		if o.Status == StatusPaid && !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r memOrders) Recent(_ context.Context, limit int) ([]Order, error) {
	out := slices.Collect(maps.Values(r.s.orders))
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memOrders) List(_ context.Context) ([]Order, error) {
	out := slices.Collect(maps.Values(r.s.orders))
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}
