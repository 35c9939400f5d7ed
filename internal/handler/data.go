package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/export"
)

const maxRecentLimit = 100

type settingsRequest struct {
	BusinessName string          `json:"businessName" validate:"max=200"`
	TaxNumber    string          `json:"taxNumber" validate:"max=50"`
	Address      string          `json:"address" validate:"max=500"`
	TaxRate      decimal.Decimal `json:"taxRate"`
}

// recentOrders answers GET /orders?limit=n with the latest orders.
func (h *Handler) recentOrders(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRecentLimit {
			badRequest(c, "limit must be between 1 and "+strconv.Itoa(maxRecentLimit))
			return
		}
		limit = n
	}
	orders, err := h.svc.Lifecycle.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// activeOrders answers GET /orders/active?table=id.
func (h *Handler) activeOrders(c *gin.Context) {
	tableID := c.Query("table")
	if tableID == "" {
		badRequest(c, "table is required")
		return
	}
	orders, err := h.svc.Lifecycle.ActiveForTable(c.Request.Context(), tableID)
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"tableId": tableID, "orders": orders, "total": order.SumTotals(orders)})
}

func (h *Handler) summary(c *gin.Context) {
	sum, err := h.svc.Reports.Summarize(c.Request.Context(), c.Param("period"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) getSettings(c *gin.Context) {
	s, err := h.svc.Settings.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) saveSettings(c *gin.Context) {
	var req settingsRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	s, err := h.svc.Settings.Save(c.Request.Context(), settings.Input{
		BusinessName: req.BusinessName,
		TaxNumber:    req.TaxNumber,
		Address:      req.Address,
		TaxRate:      req.TaxRate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// exportData streams a snapshot of every collection as a JSON attachment,
// gzip compressed when ?gzip=true.
func (h *Handler) exportData(c *gin.Context) {
	compress, _ := strconv.ParseBool(c.Query("gzip"))
	ctx := c.Request.Context()

	snap, err := export.Collect(ctx, h.svc.Store, h.now())
	if err != nil {
		writeError(c, err)
		return
	}

	name := export.FileName(snap.ExportedAt, compress)
	contentType := "application/json"
	if compress {
		contentType = "application/gzip"
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)

	var w io.Writer = c.Writer
	if compress {
		zw := pgzip.NewWriter(c.Writer)
		defer func() {
			if err := zw.Close(); err != nil {
				zctx.From(ctx).Warn("Close export stream", zap.Error(err))
			}
		}()
		w = zw
	}
	if err := export.Encode(w, snap); err != nil {
		// Headers are already sent.
		zctx.From(ctx).Error("Encode export", zap.Error(err))
	}
}

// backup writes a snapshot file to the configured backup directory.
func (h *Handler) backup(c *gin.Context) {
	if h.svc.Backups == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: "backups are not configured"})
		return
	}
	path, err := h.svc.Backups.Backup(c.Request.Context())
	if err != nil {
		writeError(c, errors.Wrap(err, "backup"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path})
}

// clearData removes products, tables and orders. The request must carry
// ?confirm=true.
func (h *Handler) clearData(c *gin.Context) {
	if ok, _ := strconv.ParseBool(c.Query("confirm")); !ok {
		badRequest(c, "clearing data requires confirm=true")
		return
	}
	ctx := c.Request.Context()
	if err := h.svc.Store.Clear(ctx); err != nil {
		writeError(c, errors.Wrap(err, "clear data"))
		return
	}
	zctx.From(ctx).Warn("All products, tables and orders cleared")
	c.Status(http.StatusNoContent)
}
