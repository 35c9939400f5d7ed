package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/cafe-pos/internal/domain/order"
)

type selectTableRequest struct {
	TableID string `json:"tableId" validate:"required"`
}

type addLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type selectCashierRequest struct {
	Name string `json:"name" validate:"required,max=80"`
}

type paymentRequest struct {
	TableID string `json:"tableId" validate:"required"`
	// Cashier, when set, is selected on the register before paying.
	Cashier string `json:"cashier" validate:"max=80"`
}

type registerView struct {
	Draft   order.DraftView `json:"draft"`
	Cashier string          `json:"cashier"`
}

type selectTableResponse struct {
	Selected bool `json:"selected"`
	registerView
}

func viewOf(s *order.Session) registerView {
	return registerView{Draft: s.Draft.View(), Cashier: s.Cashier()}
}

func (h *Handler) viewRegister(c *gin.Context) {
	h.withSession(c, func(s *order.Session) {
		c.JSON(http.StatusOK, viewOf(s))
	})
}

func (h *Handler) resetDraft(c *gin.Context) {
	h.withSession(c, func(s *order.Session) {
		s.Draft.Reset()
		c.JSON(http.StatusOK, viewOf(s))
	})
}

// selectTable points the draft at a table. An unknown table is reported
// with selected=false and leaves the draft as it was.
func (h *Handler) selectTable(c *gin.Context) {
	var req selectTableRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	h.withSession(c, func(s *order.Session) {
		ok, err := h.svc.Register.SelectTable(c.Request.Context(), s, req.TableID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, selectTableResponse{Selected: ok, registerView: viewOf(s)})
	})
}

func (h *Handler) addLine(c *gin.Context) {
	var req addLineRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	h.withSession(c, func(s *order.Session) {
		if err := h.svc.Register.AddLine(c.Request.Context(), s, req.ProductID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(s))
	})
}

// setQuantity sets a line quantity; zero or less removes the line.
func (h *Handler) setQuantity(c *gin.Context) {
	var req setQuantityRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	h.withSession(c, func(s *order.Session) {
		s.Draft.SetQuantity(c.Param("productId"), req.Quantity)
		c.JSON(http.StatusOK, viewOf(s))
	})
}

func (h *Handler) removeLine(c *gin.Context) {
	h.withSession(c, func(s *order.Session) {
		s.Draft.Remove(c.Param("productId"))
		c.JSON(http.StatusOK, viewOf(s))
	})
}

// completeOrder commits the draft. A replayed completion answers 200 with the
// stored order instead of 201.
func (h *Handler) completeOrder(c *gin.Context) {
	h.withSession(c, func(s *order.Session) {
		res, err := h.svc.Lifecycle.CompleteOrder(c.Request.Context(), s)
		if err != nil {
			writeError(c, err)
			return
		}
		status := http.StatusCreated
		if res.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, res)
	})
}

func (h *Handler) selectCashier(c *gin.Context) {
	var req selectCashierRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	h.withSession(c, func(s *order.Session) {
		if err := h.svc.Register.SelectCashier(s, req.Name); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(s))
	})
}

func (h *Handler) listCashiers(c *gin.Context) {
	cashiers := h.svc.Register.Cashiers()
	if cashiers == nil {
		cashiers = []string{}
	}
	c.JSON(http.StatusOK, cashiers)
}

// processPayment settles every active order of a table.
func (h *Handler) processPayment(c *gin.Context) {
	var req paymentRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	h.withSession(c, func(s *order.Session) {
		if req.Cashier != "" {
			if err := h.svc.Register.SelectCashier(s, req.Cashier); err != nil {
				writeError(c, err)
				return
			}
		}
		res, err := h.svc.Lifecycle.PaySession(c.Request.Context(), s, req.TableID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}
