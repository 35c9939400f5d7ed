package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/table"
)

const defaultTimeout = 5 * time.Second

// Store groups the collections a lifecycle operation reads and writes.
type Store interface {
	Products() product.Repository
	Tables() table.Repository
	Orders() Repository
	// Atomic runs fn against a view of the store whose writes commit together
	// when fn returns nil and are discarded otherwise.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Shortage reports a product whose stock went below zero on completion.
type Shortage struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}

// CompleteResult is the outcome of CompleteOrder.
type CompleteResult struct {
	Order     *Order     `json:"order"`
	Shortages []Shortage `json:"shortages,omitempty"`
	// Replayed is set when the draft had already been committed by an earlier
	// attempt and the stored order was returned unchanged.
	Replayed bool `json:"replayed,omitempty"`
}

// PaymentResult is the outcome of ProcessPayment.
type PaymentResult struct {
	TableID string          `json:"tableId"`
	Orders  []Order         `json:"orders"`
	Total   decimal.Decimal `json:"total"`
	Cashier string          `json:"cashier"`
	PaidAt  time.Time       `json:"paidAt"`
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithTimeout bounds every lifecycle operation. Expiry yields
// ErrStoreUnavailable.
func WithTimeout(d time.Duration) Option {
	return func(l *Lifecycle) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithPublisher sets the destination for committed lifecycle events.
func WithPublisher(p Publisher) Option {
	return func(l *Lifecycle) { l.publisher = p }
}

// WithMeterProvider sets the provider for order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(l *Lifecycle) { l.meterProvider = mp }
}

// WithTracerProvider sets the provider for lifecycle spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Lifecycle) { l.tracer = tp.Tracer(instrumentationName) }
}

const instrumentationName = "github.com/xenking/cafe-pos/internal/domain/order"

// Lifecycle commits drafts as orders and settles tables. Operations on the
// same table are serialised; each operation runs in one store transaction.
type Lifecycle struct {
	store         Store
	locks         *keyedMutex
	timeout       time.Duration
	publisher     Publisher
	now           func() time.Time
	meterProvider metric.MeterProvider
	tracer        trace.Tracer

	placed    metric.Int64Counter
	paid      metric.Int64Counter
	lineUnits metric.Int64Counter
	value     metric.Float64Histogram
}

// NewLifecycle creates a Lifecycle over store.
func NewLifecycle(store Store, opts ...Option) (*Lifecycle, error) {
	l := &Lifecycle{
		store:         store,
		locks:         newKeyedMutex(),
		timeout:       defaultTimeout,
		publisher:     NopPublisher{},
		now:           time.Now,
		meterProvider: metricnoop.NewMeterProvider(),
		tracer:        tracenoop.NewTracerProvider().Tracer(instrumentationName),
	}
	for _, o := range opts {
		o(l)
	}

	meter := l.meterProvider.Meter(instrumentationName)
	var err error
	if l.placed, err = meter.Int64Counter("pos.orders.placed",
		metric.WithDescription("Orders committed from drafts"),
	); err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	if l.paid, err = meter.Int64Counter("pos.orders.paid",
		metric.WithDescription("Orders settled by payment"),
	); err != nil {
		return nil, errors.Wrap(err, "orders paid counter")
	}
	if l.lineUnits, err = meter.Int64Counter("pos.order.units",
		metric.WithDescription("Product units sold"),
	); err != nil {
		return nil, errors.Wrap(err, "order units counter")
	}
	if l.value, err = meter.Float64Histogram("pos.order.value",
		metric.WithDescription("Order totals"),
	); err != nil {
		return nil, errors.Wrap(err, "order value histogram")
	}
	return l, nil
}

// CompleteOrder persists the session draft as an active order, occupies the
// table and decrements stock for every line, all in one transaction. On
// success the draft is reset; on failure it is left as is so the operator can
// retry. A retry whose order was already committed is replayed only when the
// draft is unchanged, otherwise it fails with ErrDraftChanged.
func (l *Lifecycle) CompleteOrder(ctx context.Context, s *Session) (*CompleteResult, error) {
	d := s.Draft
	if d.TableID() == "" || d.IsEmpty() {
		return nil, ErrInvalidOrder
	}

	ctx, span := l.tracer.Start(ctx, "order.CompleteOrder", trace.WithAttributes(
		attribute.String("pos.table.id", d.TableID()),
		attribute.String("pos.draft.id", d.ID()),
	))
	defer span.End()

	draftID, tableID, lines, total := d.ID(), d.TableID(), d.Lines(), d.Total()
	res, err := runBounded(ctx, l.timeout, func(ctx context.Context) (*CompleteResult, error) {
		unlock, err := l.locks.Lock(ctx, tableID)
		if err != nil {
			return nil, err
		}
		defer unlock()
		return l.complete(ctx, draftID, tableID, lines, total)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d.Reset()
	if res.Replayed {
		return res, nil
	}

	lg := zctx.From(ctx)
	lg.Info("Order placed",
		zap.String("order_id", res.Order.ID),
		zap.Int("table", res.Order.TableNumber),
		zap.Stringer("total", res.Order.Total),
	)

	l.placed.Add(ctx, 1)
	l.value.Record(ctx, res.Order.Total.InexactFloat64())
	units := 0
	for _, it := range res.Order.Items {
		units += it.Quantity
	}
	l.lineUnits.Add(ctx, int64(units))

	l.publish(ctx, Event{
		Type:        EventPlaced,
		TableID:     res.Order.TableID,
		TableNumber: res.Order.TableNumber,
		OrderIDs:    []string{res.Order.ID},
		Items:       res.Order.Items,
		Total:       res.Order.Total,
		At:          res.Order.CreatedAt,
	})
	return res, nil
}

func (l *Lifecycle) complete(
	ctx context.Context,
	draftID, tableID string,
	lines []LineItem,
	total decimal.Decimal,
) (*CompleteResult, error) {
	var res *CompleteResult
	err := l.store.Atomic(ctx, func(ctx context.Context, tx Store) error {
		tbl, err := tx.Tables().GetByID(ctx, tableID)
		if err != nil {
			if errors.Is(err, table.ErrNotFound) {
				return errors.Wrapf(ErrTableNotFound, "table %s", tableID)
			}
			return errors.Wrap(err, "get table")
		}

		// An earlier attempt may have committed after its caller gave up.
		existing, err := tx.Orders().GetByID(ctx, draftID)
		switch {
		case err == nil:
			if !existing.matches(tableID, lines, total) {
				return errors.Wrapf(ErrDraftChanged, "order %s", existing.ID)
			}
			res = &CompleteResult{Order: existing, Replayed: true}
			return nil
		case !errors.Is(err, ErrNotFound):
			return errors.Wrap(err, "get order")
		}

		next, err := tbl.Status.Transition(table.StatusOccupied)
		if err != nil {
			return err
		}

		o := &Order{
			ID:          draftID,
			TableID:     tbl.ID,
			TableNumber: tbl.Number,
			Items:       lines,
			Total:       total,
			Status:      StatusActive,
			CreatedAt:   l.now(),
		}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if err := tx.Tables().SetStatus(ctx, tbl.ID, next); err != nil {
			return errors.Wrap(err, "occupy table")
		}

		res = &CompleteResult{Order: o}
		for _, it := range lines {
			stock, err := tx.Products().AdjustStock(ctx, it.ProductID, -it.Quantity)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					zctx.From(ctx).Warn("Product removed before order completion, stock not adjusted",
						zap.String("product_id", it.ProductID),
						zap.String("name", it.Name),
					)
					continue
				}
				return errors.Wrapf(err, "decrement stock of %s", it.ProductID)
			}
			if stock < 0 {
				res.Shortages = append(res.Shortages, Shortage{
					ProductID: it.ProductID,
					Name:      it.Name,
					Stock:     stock,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, sh := range res.Shortages {
		zctx.From(ctx).Warn("Stock below zero after order",
			zap.String("product_id", sh.ProductID),
			zap.String("name", sh.Name),
			zap.Int("stock", sh.Stock),
		)
	}
	return res, nil
}

// ProcessPayment marks every active order of the table as paid by cashier
// and frees the table, in one transaction.
func (l *Lifecycle) ProcessPayment(ctx context.Context, tableID, cashier string) (*PaymentResult, error) {
	if cashier == "" {
		return nil, ErrNoCashierSelected
	}

	ctx, span := l.tracer.Start(ctx, "order.ProcessPayment", trace.WithAttributes(
		attribute.String("pos.table.id", tableID),
		attribute.String("pos.cashier", cashier),
	))
	defer span.End()

	res, err := runBounded(ctx, l.timeout, func(ctx context.Context) (*PaymentResult, error) {
		unlock, err := l.locks.Lock(ctx, tableID)
		if err != nil {
			return nil, err
		}
		defer unlock()
		return l.pay(ctx, tableID, cashier)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	zctx.From(ctx).Info("Payment processed",
		zap.String("table_id", tableID),
		zap.String("cashier", cashier),
		zap.Int("orders", len(res.Orders)),
		zap.Stringer("total", res.Total),
	)
	l.paid.Add(ctx, int64(len(res.Orders)), metric.WithAttributes(attribute.String("pos.cashier", cashier)))

	ids := make([]string, len(res.Orders))
	for i, o := range res.Orders {
		ids[i] = o.ID
	}
	tableNumber := 0
	if len(res.Orders) > 0 {
		tableNumber = res.Orders[0].TableNumber
	}
	l.publish(ctx, Event{
		Type:        EventPaid,
		TableID:     tableID,
		TableNumber: tableNumber,
		OrderIDs:    ids,
		Total:       res.Total,
		Cashier:     cashier,
		At:          res.PaidAt,
	})
	return res, nil
}

func (l *Lifecycle) pay(ctx context.Context, tableID, cashier string) (*PaymentResult, error) {
	var res *PaymentResult
	err := l.store.Atomic(ctx, func(ctx context.Context, tx Store) error {
		// The table row is read first: on postgres this takes the row lock
		// that completions wait on, so no order can be added after listing.
		tbl, err := tx.Tables().GetByID(ctx, tableID)
		if err != nil {
			if errors.Is(err, table.ErrNotFound) {
				return errors.Wrapf(ErrTableNotFound, "table %s", tableID)
			}
			return errors.Wrap(err, "get table")
		}

		orders, err := tx.Orders().ListActiveByTable(ctx, tableID)
		if err != nil {
			return errors.Wrap(err, "list active orders")
		}
		if len(orders) == 0 {
			return ErrNoActiveOrder
		}

		paidAt := l.now()
		ids := make([]string, len(orders))
		for i := range orders {
			if orders[i].CreatedAt.After(paidAt) {
				paidAt = orders[i].CreatedAt
			}
			ids[i] = orders[i].ID
		}
		for i := range orders {
			if err := orders[i].Pay(paidAt, cashier); err != nil {
				return err
			}
		}

		n, err := tx.Orders().MarkPaid(ctx, ids, paidAt, cashier)
		if err != nil {
			return errors.Wrap(err, "mark orders paid")
		}
		if n != len(ids) {
			return errors.Wrapf(ErrIllegalTransition, "%d of %d orders were no longer active", len(ids)-n, len(ids))
		}

		if tbl.Status == table.StatusFree {
			zctx.From(ctx).Warn("Table was free while holding active orders",
				zap.String("table_id", tbl.ID),
				zap.Int("number", tbl.Number),
			)
		} else {
			next, err := tbl.Status.Transition(table.StatusFree)
			if err != nil {
				return err
			}
			if err := tx.Tables().SetStatus(ctx, tbl.ID, next); err != nil {
				return errors.Wrap(err, "free table")
			}
		}

		res = &PaymentResult{
			TableID: tableID,
			Orders:  orders,
			Total:   SumTotals(orders),
			Cashier: cashier,
			PaidAt:  paidAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PaySession settles tableID with the session's cashier.
func (l *Lifecycle) PaySession(ctx context.Context, s *Session, tableID string) (*PaymentResult, error) {
	return l.ProcessPayment(ctx, tableID, s.Cashier())
}

// ActiveForTable returns the unpaid orders of a table.
func (l *Lifecycle) ActiveForTable(ctx context.Context, tableID string) ([]Order, error) {
	return runBounded(ctx, l.timeout, func(ctx context.Context) ([]Order, error) {
		return l.store.Orders().ListActiveByTable(ctx, tableID)
	})
}

// Recent returns the latest orders, newest first.
func (l *Lifecycle) Recent(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 10
	}
	return runBounded(ctx, l.timeout, func(ctx context.Context) ([]Order, error) {
		return l.store.Orders().Recent(ctx, limit)
	})
}

func (l *Lifecycle) publish(ctx context.Context, e Event) {
	if err := l.publisher.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish lifecycle event",
			zap.String("type", string(e.Type)),
			zap.Error(err),
		)
	}
}

// runBounded runs fn with a deadline. A store call that outlives the deadline
// is abandoned and reported as ErrStoreUnavailable.
func runBounded[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return zero, errors.Wrap(ErrStoreUnavailable, r.err.Error())
		}
		return r.v, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errors.Wrapf(ErrStoreUnavailable, "no response within %s", timeout)
		}
		return zero, ctx.Err()
	}
}
