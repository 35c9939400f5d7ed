package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cafe-pos/internal/domain/table"
)

// --- Helpers ---

func newTestLifecycle(t *testing.T, m *memStore, opts ...Option) *Lifecycle {
	t.Helper()
	l, err := NewLifecycle(m, opts...)
	require.NoError(t, err)
	return l
}

func draftFor(t *testing.T, m *memStore, tableID string, productIDs ...string) *Session {
	t.Helper()
	r := newTestRegister(m)
	s := NewSession()
	ok, err := r.SelectTable(context.Background(), s, tableID)
	require.NoError(t, err)
	require.True(t, ok)
	for _, id := range productIDs {
		require.NoError(t, r.AddLine(context.Background(), s, id))
	}
	return s
}

// --- Tests ---

func TestCompleteOrder_PlacesOrder(t *testing.T) {
	m := newMemStore()
	m.addTable("t3", 3, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 3)
	pub := &recordingPublisher{}
	l := newTestLifecycle(t, m, WithPublisher(pub))

	s := draftFor(t, m, "t3", "tea", "tea")
	draftID := s.Draft.ID()

	res, err := l.CompleteOrder(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, draftID, res.Order.ID)
	assert.Equal(t, 3, res.Order.TableNumber)
	assert.Equal(t, StatusActive, res.Order.Status)
	assert.True(t, decimal.RequireFromString("30.00").Equal(res.Order.Total))
	assert.Empty(t, res.Shortages)

	assert.Equal(t, table.StatusOccupied, m.state.tables["t3"].Status)
	assert.Equal(t, 1, m.state.products["tea"].Stock)
	assert.Len(t, m.state.orders, 1)

	assert.True(t, s.Draft.IsEmpty())
	assert.Empty(t, s.Draft.TableID())
	assert.NotEqual(t, draftID, s.Draft.ID())

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventPlaced, pub.events[0].Type)
	assert.Equal(t, []string{draftID}, pub.events[0].OrderIDs)
}

func TestCompleteOrder_EmptyDraft(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	l := newTestLifecycle(t, m)

	s := draftFor(t, m, "t1")
	_, err := l.CompleteOrder(context.Background(), s)

	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Zero(t, m.atomicCalls)
}

func TestCompleteOrder_NoTable(t *testing.T) {
	l := newTestLifecycle(t, newMemStore())

	_, err := l.CompleteOrder(context.Background(), NewSession())

	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestCompleteOrder_TableDeleted(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 3)
	l := newTestLifecycle(t, m)
	s := draftFor(t, m, "t1", "tea")
	delete(m.state.tables, "t1")

	_, err := l.CompleteOrder(context.Background(), s)

	require.ErrorIs(t, err, ErrTableNotFound)
	assert.Empty(t, m.state.orders)
	assert.Equal(t, 3, m.state.products["tea"].Stock)
	assert.False(t, s.Draft.IsEmpty())
}

func TestCompleteOrder_OccupiedTableCannotBeDeleted(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 3)
	l := newTestLifecycle(t, m)
	_, err := l.CompleteOrder(context.Background(), draftFor(t, m, "t1", "tea"))
	require.NoError(t, err)

	err = table.NewService(m.Tables()).Delete(context.Background(), "t1")

	require.ErrorIs(t, err, table.ErrTableOccupied)
	assert.Contains(t, m.state.tables, "t1")
}

func TestCompleteOrder_SecondOrderOnOccupiedTable(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 10)
	l := newTestLifecycle(t, m)

	_, err := l.CompleteOrder(context.Background(), draftFor(t, m, "t1", "tea"))
	require.NoError(t, err)
	_, err = l.CompleteOrder(context.Background(), draftFor(t, m, "t1", "tea", "tea"))
	require.NoError(t, err)

	active, err := l.ActiveForTable(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, active, 2)
	assert.Equal(t, 7, m.state.products["tea"].Stock)
}

func TestCompleteOrder_StockShortage(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 1)
	l := newTestLifecycle(t, m)
	s := draftFor(t, m, "t1", "tea")
	s.Draft.SetQuantity("tea", 3)

	res, err := l.CompleteOrder(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, res.Shortages, 1)
	assert.Equal(t, -2, res.Shortages[0].Stock)
	assert.Equal(t, -2, m.state.products["tea"].Stock)
}

func TestCompleteOrder_ProductDeletedBeforeCompletion(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 5)
	m.addProduct("cake", "Cake", "40.00", 5)
	l := newTestLifecycle(t, m)
	s := draftFor(t, m, "t1", "tea", "cake")
	delete(m.state.products, "cake")

	res, err := l.CompleteOrder(context.Background(), s)
	require.NoError(t, err)

	assert.Len(t, res.Order.Items, 2)
	assert.Equal(t, 4, m.state.products["tea"].Stock)
}

func TestCompleteOrder_FailureRollsBack(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 5)
	m.setStatusErr = errors.New("disk full")
	pub := &recordingPublisher{}
	l := newTestLifecycle(t, m, WithPublisher(pub))
	s := draftFor(t, m, "t1", "tea")

	_, err := l.CompleteOrder(context.Background(), s)

	require.Error(t, err)
	assert.Empty(t, m.state.orders)
	assert.Equal(t, table.StatusFree, m.state.tables["t1"].Status)
	assert.Equal(t, 5, m.state.products["tea"].Stock)
	assert.False(t, s.Draft.IsEmpty())
	assert.Empty(t, pub.events)
}

func TestCompleteOrder_RetryIsIdempotent(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 5)
	l := newTestLifecycle(t, m)
	s := draftFor(t, m, "t1", "tea")
	retry := &Session{Draft: &Draft{
		id:      s.Draft.ID(),
		tableID: s.Draft.TableID(),
		lines:   s.Draft.Lines(),
		total:   s.Draft.Total(),
	}}

	first, err := l.CompleteOrder(context.Background(), s)
	require.NoError(t, err)

	second, err := l.CompleteOrder(context.Background(), retry)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Len(t, m.state.orders, 1)
	assert.Equal(t, 4, m.state.products["tea"].Stock)
}

func TestCompleteOrder_RetryAfterEditIsRejected(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "10.00", 5)
	m.addProduct("cake", "Cake", "30.00", 20)
	l := newTestLifecycle(t, m)
	s := draftFor(t, m, "t1", "tea")
	retry := &Session{Draft: &Draft{
		id:      s.Draft.ID(),
		tableID: s.Draft.TableID(),
		lines:   s.Draft.Lines(),
		total:   s.Draft.Total(),
	}}

	_, err := l.CompleteOrder(context.Background(), s)
	require.NoError(t, err)

	require.NoError(t, newTestRegister(m).AddLine(context.Background(), retry, "cake"))
	_, err = l.CompleteOrder(context.Background(), retry)

	require.ErrorIs(t, err, ErrDraftChanged)
	assert.Len(t, retry.Draft.Lines(), 2)
	assert.True(t, decimal.RequireFromString("40.00").Equal(retry.Draft.Total()))
	assert.Len(t, m.state.orders, 1)
	assert.Equal(t, 20, m.state.products["cake"].Stock)
}

func TestCompleteOrder_Timeout(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 5)
	m.atomicDelay = time.Second
	l := newTestLifecycle(t, m, WithTimeout(20*time.Millisecond))
	s := draftFor(t, m, "t1", "tea")

	_, err := l.CompleteOrder(context.Background(), s)

	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, s.Draft.IsEmpty())
}

func TestCompleteOrder_ConcurrentSameTable(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 100)
	l := newTestLifecycle(t, m)

	const n = 8
	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i] = draftFor(t, m, "t1", "tea")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.CompleteOrder(context.Background(), sessions[i])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, m.state.orders, n)
	assert.Equal(t, 100-n, m.state.products["tea"].Stock)
}

func TestProcessPayment_PaysAllActiveOrders(t *testing.T) {
	m := newMemStore()
	m.addTable("t3", 3, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 10)
	pub := &recordingPublisher{}
	l := newTestLifecycle(t, m, WithPublisher(pub))

	_, err := l.CompleteOrder(context.Background(), draftFor(t, m, "t3", "tea"))
	require.NoError(t, err)
	_, err = l.CompleteOrder(context.Background(), draftFor(t, m, "t3", "tea", "tea"))
	require.NoError(t, err)

	res, err := l.ProcessPayment(context.Background(), "t3", "Emre")
	require.NoError(t, err)

	assert.Len(t, res.Orders, 2)
	assert.True(t, decimal.RequireFromString("45.00").Equal(res.Total))
	assert.Equal(t, table.StatusFree, m.state.tables["t3"].Status)
	for _, o := range m.state.orders {
		assert.Equal(t, StatusPaid, o.Status)
		assert.Equal(t, "Emre", o.Cashier)
		require.NotNil(t, o.PaidAt)
		assert.False(t, o.PaidAt.Before(o.CreatedAt))
	}

	require.Len(t, pub.events, 3)
	assert.Equal(t, EventPaid, pub.events[2].Type)
	assert.Len(t, pub.events[2].OrderIDs, 2)
}

func TestProcessPayment_NoActiveOrder(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	l := newTestLifecycle(t, m)

	_, err := l.ProcessPayment(context.Background(), "t1", "Emre")

	require.ErrorIs(t, err, ErrNoActiveOrder)
	assert.Equal(t, table.StatusFree, m.state.tables["t1"].Status)
}

func TestProcessPayment_UnknownTable(t *testing.T) {
	m := newMemStore()
	l := newTestLifecycle(t, m)

	_, err := l.ProcessPayment(context.Background(), "nope", "Emre")

	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestProcessPayment_ReadsTableBeforeOrders(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 10)
	l := newTestLifecycle(t, m)
	_, err := l.CompleteOrder(context.Background(), draftFor(t, m, "t1", "tea"))
	require.NoError(t, err)

	_, err = l.ProcessPayment(context.Background(), "t1", "Emre")
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(m.txReads), 2)
	assert.Equal(t, []string{"table t1", "active orders t1"}, m.txReads[:2])
}

func TestProcessPayment_NoCashier(t *testing.T) {
	m := newMemStore()
	l := newTestLifecycle(t, m)

	_, err := l.ProcessPayment(context.Background(), "t1", "")

	require.ErrorIs(t, err, ErrNoCashierSelected)
	assert.Zero(t, m.atomicCalls)
}

func TestProcessPayment_SecondPaymentFails(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 10)
	l := newTestLifecycle(t, m)
	_, err := l.CompleteOrder(context.Background(), draftFor(t, m, "t1", "tea"))
	require.NoError(t, err)

	_, err = l.ProcessPayment(context.Background(), "t1", "Emre")
	require.NoError(t, err)

	_, err = l.ProcessPayment(context.Background(), "t1", "Emre")
	require.ErrorIs(t, err, ErrNoActiveOrder)
}

func TestProcessPayment_FreeTableHealed(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 10)
	l := newTestLifecycle(t, m)
	_, err := l.CompleteOrder(context.Background(), draftFor(t, m, "t1", "tea"))
	require.NoError(t, err)
	tbl := m.state.tables["t1"]
	tbl.Status = table.StatusFree
	m.state.tables["t1"] = tbl

	res, err := l.ProcessPayment(context.Background(), "t1", "Emre")

	require.NoError(t, err)
	assert.Len(t, res.Orders, 1)
	assert.Equal(t, table.StatusFree, m.state.tables["t1"].Status)
}

func TestProcessPayment_FailureKeepsOrdersActive(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 10)
	l := newTestLifecycle(t, m)
	_, err := l.CompleteOrder(context.Background(), draftFor(t, m, "t1", "tea"))
	require.NoError(t, err)
	m.setStatusErr = errors.New("disk full")

	_, err = l.ProcessPayment(context.Background(), "t1", "Emre")

	require.Error(t, err)
	for _, o := range m.state.orders {
		assert.Equal(t, StatusActive, o.Status)
	}
	assert.Equal(t, table.StatusOccupied, m.state.tables["t1"].Status)
}

func TestPaySession_UsesSessionCashier(t *testing.T) {
	m := newMemStore()
	l := newTestLifecycle(t, m)

	_, err := l.PaySession(context.Background(), NewSession(), "t1")

	require.ErrorIs(t, err, ErrNoCashierSelected)
}

func TestLifecycle_PublishErrorIgnored(t *testing.T) {
	m := newMemStore()
	m.addTable("t1", 1, table.StatusFree)
	m.addProduct("tea", "Tea", "15.00", 10)
	pub := &recordingPublisher{err: errors.New("broker down")}
	l := newTestLifecycle(t, m, WithPublisher(pub))

	_, err := l.CompleteOrder(context.Background(), draftFor(t, m, "t1", "tea"))

	require.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestRecent_DefaultLimit(t *testing.T) {
	m := newMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		m.state.orders[id] = Order{ID: id, Status: StatusActive, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
	}
	l := newTestLifecycle(t, m)

	orders, err := l.Recent(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, orders, 10)
	assert.Equal(t, "o", orders[0].ID)
}
