package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/domain/table"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pos.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Products().Create(ctx, &product.Product{
		ID: "tea", Name: "Tea", Category: product.CategoryHotDrinks,
		Price: decimal.RequireFromString("15.00"), Stock: 3,
	}))
	require.NoError(t, s.Products().Create(ctx, &product.Product{
		ID: "cake", Name: "Cake", Category: product.CategoryDesserts,
		Price: decimal.RequireFromString("40.00"), Stock: 5,
	}))
	require.NoError(t, s.Tables().Create(ctx, &table.Table{ID: "t3", Number: 3, Status: table.StatusFree}))
	require.NoError(t, s.Tables().Create(ctx, &table.Table{ID: "t1", Number: 1, Status: table.StatusFree}))
}

func TestProductRepository(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()
	repo := s.Products()

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Cake", all[0].Name)

	hot, err := repo.ListByCategory(ctx, product.CategoryHotDrinks)
	require.NoError(t, err)
	require.Len(t, hot, 1)
	assert.True(t, decimal.RequireFromString("15.00").Equal(hot[0].Price))

	stock, err := repo.AdjustStock(ctx, "tea", -5)
	require.NoError(t, err)
	assert.Equal(t, -2, stock)

	require.NoError(t, repo.SetStock(ctx, "tea", 10))
	p, err := repo.GetByID(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	require.NoError(t, repo.Delete(ctx, "tea"))
	_, err = repo.GetByID(ctx, "tea")
	require.ErrorIs(t, err, product.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, "tea"), product.ErrNotFound)
	_, err = repo.AdjustStock(ctx, "tea", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestTableRepository(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()
	repo := s.Tables()

	tables, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, 1, tables[0].Number)
	assert.Equal(t, 3, tables[1].Number)

	err = repo.Create(ctx, &table.Table{ID: "dup", Number: 3, Status: table.StatusFree})
	require.ErrorIs(t, err, table.ErrDuplicateNumber)

	require.NoError(t, repo.SetStatus(ctx, "t3", table.StatusOccupied))
	occupied, err := repo.ListByStatus(ctx, table.StatusOccupied)
	require.NoError(t, err)
	require.Len(t, occupied, 1)
	assert.Equal(t, "t3", occupied[0].ID)

	require.ErrorIs(t, repo.Delete(ctx, "t3"), table.ErrTableOccupied)
	require.ErrorIs(t, repo.Delete(ctx, "missing"), table.ErrNotFound)
	require.ErrorIs(t, repo.Create(ctx, &table.Table{ID: "t3b", Number: 3, Status: table.StatusFree}), table.ErrDuplicateNumber)

	require.NoError(t, repo.SetStatus(ctx, "t3", table.StatusFree))
	require.NoError(t, repo.Delete(ctx, "t3"))
	require.NoError(t, repo.Create(ctx, &table.Table{ID: "t3b", Number: 3, Status: table.StatusFree}))
	_, err = repo.GetByID(ctx, "t3")
	require.ErrorIs(t, err, table.ErrNotFound)
}

func TestOrderRepository(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Orders()
	base := time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"o1", "o2", "o3"} {
		require.NoError(t, repo.Create(ctx, &order.Order{
			ID:        id,
			TableID:   "t1",
			Items:     []order.LineItem{{ProductID: "tea", Name: "Tea", Price: decimal.NewFromInt(15), Quantity: 1}},
			Total:     decimal.NewFromInt(15),
			Status:    order.StatusActive,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.Error(t, repo.Create(ctx, &order.Order{ID: "o1", CreatedAt: base}))

	active, err := repo.ListActiveByTable(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "o1", active[0].ID)

	n, err := repo.MarkPaid(ctx, []string{"o2", "o3", "missing"}, base.Add(5*time.Hour), "Emre")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.MarkPaid(ctx, []string{"o2"}, base.Add(6*time.Hour), "Ayşe")
	require.NoError(t, err)
	assert.Zero(t, n)

	paid, err := repo.ListPaidSince(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "o3", paid[0].ID)
	assert.Equal(t, "Emre", paid[0].Cashier)
	require.NotNil(t, paid[0].PaidAt)

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "o3", recent[0].ID)
	assert.Equal(t, "o2", recent[1].ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = repo.GetByID(ctx, "nope")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestSettingsRepository(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Settings().Get(ctx)
	require.ErrorIs(t, err, settings.ErrNotFound)

	require.NoError(t, s.Settings().Upsert(ctx, &settings.Settings{BusinessName: "Kafe Ada", TaxRate: decimal.NewFromInt(8)}))
	got, err := s.Settings().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kafe Ada", got.BusinessName)
	assert.True(t, decimal.NewFromInt(8).Equal(got.TaxRate))
}

func TestAtomic_RollsBack(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	err := s.Atomic(ctx, func(ctx context.Context, tx order.Store) error {
		if err := tx.Tables().SetStatus(ctx, "t1", table.StatusOccupied); err != nil {
			return err
		}
		if _, err := tx.Products().AdjustStock(ctx, "tea", -1); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	tbl, err := s.Tables().GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, table.StatusFree, tbl.Status)
	p, err := s.Products().GetByID(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestLifecycle_EndToEnd(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	l, err := order.NewLifecycle(s)
	require.NoError(t, err)
	reg := order.NewRegister(s.Products(), s.Tables(), nil)
	sess := order.NewSession()

	ok, err := reg.SelectTable(ctx, sess, "t3")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, reg.AddLine(ctx, sess, "tea"))
	require.NoError(t, reg.AddLine(ctx, sess, "tea"))

	res, err := l.CompleteOrder(ctx, sess)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("30.00").Equal(res.Order.Total))

	tbl, err := s.Tables().GetByID(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, table.StatusOccupied, tbl.Status)
	p, err := s.Products().GetByID(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)

	pay, err := l.ProcessPayment(ctx, "t3", "Emre")
	require.NoError(t, err)
	assert.Len(t, pay.Orders, 1)

	tbl, err = s.Tables().GetByID(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, table.StatusFree, tbl.Status)

	_, err = l.ProcessPayment(ctx, "t3", "Emre")
	require.ErrorIs(t, err, order.ErrNoActiveOrder)
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.Settings().Upsert(ctx, &settings.Settings{BusinessName: "Kafe Ada"}))

	require.NoError(t, s.Clear(ctx))

	products, err := s.Products().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
	tables, err := s.Tables().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
	_, err = s.Settings().Get(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
}
