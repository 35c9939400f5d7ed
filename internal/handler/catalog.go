package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/table"
)

type addTableRequest struct {
	Number int `json:"number" validate:"required,gt=0"`
}

type addProductRequest struct {
	Name     string          `json:"name" validate:"required,max=120"`
	Category string          `json:"category" validate:"max=40"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock" validate:"gte=0"`
	Image    string          `json:"image"`
}

type setStockRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

// listTables answers GET /tables. ?status=occupied restricts the list to
// tables awaiting payment.
func (h *Handler) listTables(c *gin.Context) {
	var (
		tables []table.Table
		err    error
	)
	switch status := c.Query("status"); status {
	case "":
		tables, err = h.svc.Tables.List(c.Request.Context())
	case string(table.StatusOccupied):
		tables, err = h.svc.Tables.ListOccupied(c.Request.Context())
	default:
		badRequest(c, "unknown table status "+strconv.Quote(status))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if tables == nil {
		tables = []table.Table{}
	}
	c.JSON(http.StatusOK, tables)
}

func (h *Handler) addTable(c *gin.Context) {
	var req addTableRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	t, err := h.svc.Tables.Add(c.Request.Context(), req.Number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) deleteTable(c *gin.Context) {
	if err := h.svc.Tables.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listProducts answers GET /products. ?category= filters by menu section.
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.svc.Products.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		writeError(c, err)
		return
	}
	if products == nil {
		products = []product.Product{}
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) addProduct(c *gin.Context) {
	var req addProductRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.Products.Add(c.Request.Context(), product.AddInput{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Stock:    req.Stock,
		Image:    req.Image,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.svc.Products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setStock(c *gin.Context) {
	var req setStockRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.svc.Products.SetStock(ctx, id, *req.Stock); err != nil {
		writeError(c, err)
		return
	}
	p, err := h.svc.Products.Get(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// stockReport answers GET /stock. ?threshold= overrides the configured low
// stock threshold.
func (h *Handler) stockReport(c *gin.Context) {
	threshold := h.lowStock
	if v := c.Query("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "threshold must be a non-negative integer")
			return
		}
		threshold = n
	}
	lines, err := h.svc.Products.StockReport(c.Request.Context(), threshold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threshold": threshold, "products": lines})
}
