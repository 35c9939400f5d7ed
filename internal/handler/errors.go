package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/report"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/domain/table"
)

// errTooManyRegisters is returned when every session slot belongs to a
// recently used register.
var errTooManyRegisters = errors.New("too many register sessions")

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a domain error to an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errTooManyRegisters):
		return http.StatusTooManyRequests
	case errors.Is(err, product.ErrInvalidProduct),
		errors.Is(err, product.ErrInvalidStock),
		errors.Is(err, table.ErrInvalidNumber),
		errors.Is(err, settings.ErrInvalidSettings),
		errors.Is(err, report.ErrUnknownPeriod):
		return http.StatusBadRequest
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, table.ErrNotFound),
		errors.Is(err, order.ErrTableNotFound),
		errors.Is(err, order.ErrProductNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, table.ErrTableOccupied),
		errors.Is(err, table.ErrDuplicateNumber),
		errors.Is(err, table.ErrIllegalTransition),
		errors.Is(err, order.ErrIllegalTransition),
		errors.Is(err, order.ErrNoActiveOrder),
		errors.Is(err, order.ErrDraftChanged):
		return http.StatusConflict
	case errors.Is(err, order.ErrNoTableSelected),
		errors.Is(err, order.ErrOutOfStock),
		errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, order.ErrNoCashierSelected),
		errors.Is(err, order.ErrUnknownCashier):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a {code, message} body. Internal errors are
// logged and their details withheld.
func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(code, errorResponse{Code: code, Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: msg})
}

// bindAndValidate binds the JSON body into out and runs struct validation.
// On failure it writes a 400 and returns false.
func (h *Handler) bindAndValidate(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		badRequest(c, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
