package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a committed lifecycle transition.
type EventType string

const (
	EventPlaced EventType = "order.placed"
	EventPaid   EventType = "order.paid"
)

// Event is emitted after a lifecycle operation commits.
type Event struct {
	Type        EventType       `json:"type"`
	TableID     string          `json:"tableId"`
	TableNumber int             `json:"tableNumber"`
	OrderIDs    []string        `json:"orderIds"`
	Items       []LineItem      `json:"items,omitempty"`
	Total       decimal.Decimal `json:"total"`
	Cashier     string          `json:"cashier,omitempty"`
	At          time.Time       `json:"at"`
}

// Publisher delivers lifecycle events to interested parties such as a
// kitchen display. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
