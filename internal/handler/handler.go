// Package handler exposes the register workflows as a JSON API for the
// rendering layer.
package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/report"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/domain/table"
	"github.com/xenking/cafe-pos/internal/export"
)

// RegisterIDHeader selects the register session a request acts on.
const RegisterIDHeader = "X-Register-ID"

const (
	defaultRegisterID   = "main"
	maxRegisterIDLength = 64
)

// DataStore is the store behind export and maintenance endpoints.
type DataStore interface {
	export.Source
	// Clear removes products, tables and orders in one transaction.
	Clear(ctx context.Context) error
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// LowStockThreshold is the default threshold of the stock report.
	LowStockThreshold int
	// MaxRegisters caps the number of register sessions held in memory.
	MaxRegisters int
	// RegisterIdleTimeout is how long an unused session is kept once the
	// cap is reached.
	RegisterIdleTimeout time.Duration
}

// Services groups the domain services the Handler delegates to.
type Services struct {
	Products  *product.Service
	Tables    *table.Service
	Register  *order.Register
	Lifecycle *order.Lifecycle
	Reports   *report.Service
	Settings  *settings.Service
	Store     DataStore
	// Backups is optional; without it POST /backups answers 404.
	Backups *export.Backuper
}

// Handler serves the register API. Draft state lives in per-register
// sessions keyed by RegisterIDHeader.
type Handler struct {
	svc      Services
	validate *validator.Validate
	sessions *sessions
	lowStock int
	now      func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, svc Services) *Handler {
	if cfg.LowStockThreshold <= 0 {
		cfg.LowStockThreshold = 10
	}
	if cfg.MaxRegisters <= 0 {
		cfg.MaxRegisters = 32
	}
	if cfg.RegisterIdleTimeout <= 0 {
		cfg.RegisterIdleTimeout = 12 * time.Hour
	}
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		sessions: newSessions(cfg.MaxRegisters, cfg.RegisterIdleTimeout),
		lowStock: cfg.LowStockThreshold,
		now:      time.Now,
	}
}

// Routes mounts the API on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/tables", h.listTables)
	r.POST("/tables", h.addTable)
	r.DELETE("/tables/:id", h.deleteTable)

	r.GET("/products", h.listProducts)
	r.POST("/products", h.addProduct)
	r.DELETE("/products/:id", h.deleteProduct)
	r.PUT("/products/:id/stock", h.setStock)
	r.GET("/stock", h.stockReport)

	r.GET("/register", h.viewRegister)
	r.DELETE("/register", h.resetDraft)
	r.POST("/register/table", h.selectTable)
	r.POST("/register/lines", h.addLine)
	r.PUT("/register/lines/:productId", h.setQuantity)
	r.DELETE("/register/lines/:productId", h.removeLine)
	r.POST("/register/complete", h.completeOrder)
	r.PUT("/register/cashier", h.selectCashier)
	r.GET("/cashiers", h.listCashiers)

	r.POST("/payments", h.processPayment)
	r.GET("/orders", h.recentOrders)
	r.GET("/orders/active", h.activeOrders)
	r.GET("/reports/:period", h.summary)

	r.GET("/settings", h.getSettings)
	r.PUT("/settings", h.saveSettings)

	r.GET("/export", h.exportData)
	r.POST("/backups", h.backup)
	r.DELETE("/data", h.clearData)
}

// NewEngine returns a gin engine serving the API under /api. Request
// logging, recovery and CORS are left to the net/http middleware chain.
func NewEngine(h *Handler) *gin.Engine {
	e := gin.New()
	e.HandleMethodNotAllowed = true
	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: "not found"})
	})
	e.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorResponse{Code: http.StatusMethodNotAllowed, Message: "method not allowed"})
	})
	h.Routes(e.Group("/api"))
	return e
}

type registerSession struct {
	mu sync.Mutex
	s  *order.Session

	lastUsed time.Time // guarded by sessions.mu
}

// sessions holds at most limit register sessions. When a new register
// arrives at the cap, sessions unused for longer than idle are dropped.
type sessions struct {
	mu    sync.Mutex
	m     map[string]*registerSession
	limit int
	idle  time.Duration
	now   func() time.Time
}

func newSessions(limit int, idle time.Duration) *sessions {
	return &sessions{
		m:     make(map[string]*registerSession),
		limit: limit,
		idle:  idle,
		now:   time.Now,
	}
}

func (ss *sessions) get(id string) (*registerSession, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	rs, ok := ss.m[id]
	if !ok {
		if len(ss.m) >= ss.limit {
			ss.evictIdle(now)
		}
		if len(ss.m) >= ss.limit {
			return nil, errTooManyRegisters
		}
		rs = &registerSession{s: order.NewSession()}
		ss.m[id] = rs
	}
	rs.lastUsed = now
	return rs, nil
}

func (ss *sessions) evictIdle(now time.Time) {
	for id, rs := range ss.m {
		if now.Sub(rs.lastUsed) > ss.idle {
			delete(ss.m, id)
		}
	}
}

// withSession runs fn holding the lock of the caller's register session.
func (h *Handler) withSession(c *gin.Context, fn func(s *order.Session)) {
	id := strings.TrimSpace(c.GetHeader(RegisterIDHeader))
	if id == "" {
		id = defaultRegisterID
	}
	if len(id) > maxRegisterIDLength {
		badRequest(c, RegisterIDHeader+" is too long")
		return
	}
	rs, err := h.sessions.get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	fn(rs.s)
}
