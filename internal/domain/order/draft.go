package order

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-pos/internal/domain/product"
)

// Draft is the in-memory order being built for the selected table. It is
// never persisted; CompleteOrder turns it into an Order.
//
// The total is always re-derived from the lines after a mutation.
type Draft struct {
	id      string
	tableID string
	lines   []LineItem
	total   decimal.Decimal
}

// DraftView is a read-only copy of a draft.
type DraftView struct {
	ID      string          `json:"id"`
	TableID string          `json:"tableId,omitempty"`
	Items   []LineItem      `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

// NewDraft returns an empty draft with a fresh identifier.
func NewDraft() *Draft {
	return &Draft{id: uuid.New().String(), total: decimal.Zero}
}

// ID identifies the draft. The order created from it reuses this value, which
// makes completion safe to retry.
func (d *Draft) ID() string { return d.id }

// TableID returns the selected table or "" when none is selected.
func (d *Draft) TableID() string { return d.tableID }

// Total returns Σ(price × quantity) over the current lines.
func (d *Draft) Total() decimal.Decimal { return d.total }

// Lines returns a copy of the current line items.
func (d *Draft) Lines() []LineItem { return slices.Clone(d.lines) }

// IsEmpty reports whether the draft has no lines.
func (d *Draft) IsEmpty() bool { return len(d.lines) == 0 }

// View returns a snapshot suitable for rendering.
func (d *Draft) View() DraftView {
	items := d.Lines()
	if items == nil {
		items = []LineItem{}
	}
	return DraftView{ID: d.id, TableID: d.tableID, Items: items, Total: d.total}
}

// SelectTable switches the draft to another table. Lines collected for the
// previous table are discarded. Selecting the current table is a no-op.
func (d *Draft) SelectTable(tableID string) {
	if d.tableID == tableID {
		return
	}
	d.clear()
	d.tableID = tableID
}

// Add appends one unit of p, or increments its quantity when the product is
// already a line. The name and price are captured from p on first add.
func (d *Draft) Add(p product.Product) {
	if i := d.index(p.ID); i >= 0 {
		d.lines[i].Quantity++
	} else {
		d.lines = append(d.lines, LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  1,
		})
	}
	d.recompute()
}

// SetQuantity sets the quantity of a line. A quantity ≤ 0 removes it. Stock
// is not consulted here.
func (d *Draft) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		d.Remove(productID)
		return
	}
	if i := d.index(productID); i >= 0 {
		d.lines[i].Quantity = quantity
		d.recompute()
	}
}

// Remove drops the line for productID if present.
func (d *Draft) Remove(productID string) {
	if i := d.index(productID); i >= 0 {
		d.lines = slices.Delete(d.lines, i, i+1)
	}
	d.recompute()
}

// Reset clears the table selection and lines and starts a new draft id.
func (d *Draft) Reset() {
	d.clear()
	d.tableID = ""
}

func (d *Draft) clear() {
	d.id = uuid.New().String()
	d.lines = nil
	d.total = decimal.Zero
}

func (d *Draft) index(productID string) int {
	return slices.IndexFunc(d.lines, func(l LineItem) bool {
		return l.ProductID == productID
	})
}

func (d *Draft) recompute() {
	d.total = SumItems(d.lines)
}
