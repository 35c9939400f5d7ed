// Package export produces full-database backup snapshots.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/domain/table"
	"github.com/xenking/cafe-pos/internal/storage"
)

// Source is the store being exported.
type Source = storage.Viewer

// Snapshot groups every collection at one point in time.
type Snapshot struct {
	ExportedAt time.Time          `json:"exportedAt"`
	Products   []product.Product  `json:"products"`
	Tables     []table.Table      `json:"tables"`
	Orders     []order.Order      `json:"orders"`
	Settings   *settings.Settings `json:"settings"`
}

// Collect reads all collections inside one read-only view of src. Missing
// settings export as null.
func Collect(ctx context.Context, src Source, now time.Time) (*Snapshot, error) {
	snap := &Snapshot{ExportedAt: now}
	err := src.View(ctx, func(ctx context.Context, c storage.Collections) (err error) {
		if snap.Products, err = c.Products().List(ctx); err != nil {
			return errors.Wrap(err, "products")
		}
		if snap.Tables, err = c.Tables().List(ctx); err != nil {
			return errors.Wrap(err, "tables")
		}
		if snap.Orders, err = c.Orders().List(ctx); err != nil {
			return errors.Wrap(err, "orders")
		}
		s, err := c.Settings().Get(ctx)
		switch {
		case err == nil:
			snap.Settings = s
		case !errors.Is(err, settings.ErrNotFound):
			return errors.Wrap(err, "settings")
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "collect snapshot")
	}
	return snap, nil
}

// Encode writes snap as indented JSON. Money is written as a number with two
// decimals.
func Encode(w io.Writer, snap *Snapshot) error {
	var e jx.Encoder
	e.SetIdent(2)

	e.Obj(func(e *jx.Encoder) {
		e.Field("exportedAt", func(e *jx.Encoder) { encodeTime(e, snap.ExportedAt) })
		e.Field("products", func(e *jx.Encoder) {
			e.ArrStart()
			for _, p := range snap.Products {
				encodeProduct(e, p)
			}
			e.ArrEnd()
		})
		e.Field("tables", func(e *jx.Encoder) {
			e.ArrStart()
			for _, t := range snap.Tables {
				encodeTable(e, t)
			}
			e.ArrEnd()
		})
		e.Field("orders", func(e *jx.Encoder) {
			e.ArrStart()
			for _, o := range snap.Orders {
				encodeOrder(e, o)
			}
			e.ArrEnd()
		})
		e.Field("settings", func(e *jx.Encoder) {
			if snap.Settings == nil {
				e.Null()
				return
			}
			encodeSettings(e, *snap.Settings)
		})
	})

	if _, err := w.Write(e.Bytes()); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	return nil
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(string(p.Category)) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
	})
}

func encodeTable(e *jx.Encoder, t table.Table) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(t.ID) })
		e.Field("number", func(e *jx.Encoder) { e.Int(t.Number) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(t.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, t.CreatedAt) })
	})
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("tableId", func(e *jx.Encoder) { e.Str(o.TableID) })
		e.Field("tableNumber", func(e *jx.Encoder) { e.Int(o.TableNumber) })
		e.Field("items", func(e *jx.Encoder) {
			e.ArrStart()
			for _, it := range o.Items {
				e.Obj(func(e *jx.Encoder) {
					e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
					e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.Price) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
				})
			}
			e.ArrEnd()
		})
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		if o.PaidAt != nil {
			e.Field("paidAt", func(e *jx.Encoder) { encodeTime(e, *o.PaidAt) })
		}
		if o.Cashier != "" {
			e.Field("cashier", func(e *jx.Encoder) { e.Str(o.Cashier) })
		}
	})
}

func encodeSettings(e *jx.Encoder, s settings.Settings) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("businessName", func(e *jx.Encoder) { e.Str(s.BusinessName) })
		e.Field("taxNumber", func(e *jx.Encoder) { e.Str(s.TaxNumber) })
		e.Field("address", func(e *jx.Encoder) { e.Str(s.Address) })
		e.Field("taxRate", func(e *jx.Encoder) { encodeMoney(e, s.TaxRate) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, s.UpdatedAt) })
	})
}

// FileName returns the backup file name for a snapshot taken at t.
func FileName(t time.Time, compress bool) string {
	name := "backup-" + t.Format("2006-01-02") + ".json"
	if compress {
		name += ".gz"
	}
	return name
}

// WriteFile encodes snap into dir and returns the file path. A backup taken
// the same day replaces the earlier one.
func WriteFile(dir string, snap *Snapshot, compress bool) (_ string, rerr error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.Wrapf(err, "create backup dir %s", dir)
	}
	path := filepath.Join(dir, FileName(snap.ExportedAt, compress))

	tmp, err := os.CreateTemp(dir, ".backup-*")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	defer func() {
		if rerr != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	var w io.Writer = tmp
	var gz *pgzip.Writer
	if compress {
		gz = pgzip.NewWriter(tmp)
		w = gz
	}
	if err := Encode(w, snap); err != nil {
		return "", err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return "", errors.Wrap(err, "close gzip stream")
		}
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename backup to %s: %w", path, err)
	}
	return path, nil
}
