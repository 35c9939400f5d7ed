package report

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cafe-pos/internal/domain/order"
)

// TopProductsLimit caps the best-seller list.
const TopProductsLimit = 5

// ProductSales is cumulative units sold for one product name.
type ProductSales struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Point is a bucket with its summed sales.
type Point struct {
	Bucket
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Summary is the sales report for a period.
type Summary struct {
	Period      Period                     `json:"period"`
	Start       time.Time                  `json:"start"`
	GeneratedAt time.Time                  `json:"generatedAt"`
	Total       decimal.Decimal            `json:"total"`
	Count       int                        `json:"count"`
	Average     decimal.Decimal            `json:"average"`
	ByCashier   map[string]decimal.Decimal `json:"byCashier"`
	TopProducts []ProductSales             `json:"topProducts"`
	Series      []Point                    `json:"series"`
}

// Aggregate computes a Summary over orders. Orders that are not paid or were
// created before the period start are ignored.
func Aggregate(p Period, orders []order.Order, now time.Time, loc *time.Location) Summary {
	start := p.Start(now, loc)
	s := Summary{
		Period:      p,
		Start:       start,
		GeneratedAt: now,
		Total:       decimal.Zero,
		Average:     decimal.Zero,
		ByCashier:   make(map[string]decimal.Decimal),
		TopProducts: []ProductSales{},
	}

	buckets := p.Buckets(now, loc)
	s.Series = make([]Point, len(buckets))
	for i, b := range buckets {
		s.Series[i] = Point{Bucket: b, Total: decimal.Zero}
	}

	qty := make(map[string]int)
	var names []string

	for _, o := range orders {
		if o.Status != order.StatusPaid || o.CreatedAt.Before(start) {
			continue
		}
		s.Total = s.Total.Add(o.Total)
		s.Count++

		if o.Cashier != "" {
			s.ByCashier[o.Cashier] = s.ByCashier[o.Cashier].Add(o.Total)
		}

		for _, it := range o.Items {
			if _, ok := qty[it.Name]; !ok {
				names = append(names, it.Name)
			}
			qty[it.Name] += it.Quantity
		}

		created := o.CreatedAt.In(loc)
		for i := range s.Series {
			if s.Series[i].contains(created) {
				s.Series[i].Total = s.Series[i].Total.Add(o.Total)
				s.Series[i].Count++
				break
			}
		}
	}

	if s.Count > 0 {
		s.Average = s.Total.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}

	for _, name := range names {
		s.TopProducts = append(s.TopProducts, ProductSales{Name: name, Quantity: qty[name]})
	}
	slices.SortStableFunc(s.TopProducts, func(a, b ProductSales) int {
		return b.Quantity - a.Quantity
	})
	if len(s.TopProducts) > TopProductsLimit {
		s.TopProducts = s.TopProducts[:TopProductsLimit]
	}

	return s
}

// PaidOrders is the read side of the order repository used for reporting.
type PaidOrders interface {
	ListPaidSince(ctx context.Context, since time.Time) ([]order.Order, error)
}

// Service builds period summaries from stored orders.
type Service struct {
	orders PaidOrders
	loc    *time.Location
	now    func() time.Time
}

// NewService creates a report Service. A nil loc means time.Local.
func NewService(orders PaidOrders, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{orders: orders, loc: loc, now: time.Now}
}

// Summarize returns the summary for the named period.
func (s *Service) Summarize(ctx context.Context, period string) (*Summary, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	now := s.now()
	orders, err := s.orders.ListPaidSince(ctx, p.Start(now, s.loc))
	if err != nil {
		return nil, errors.Wrap(err, "list paid orders")
	}

	sum := Aggregate(p, orders, now, s.loc)
	zctx.From(ctx).Debug("Report generated",
		zap.String("period", string(p)),
		zap.Int("orders", sum.Count),
		zap.Stringer("total", sum.Total),
	)
	return &sum, nil
}
