package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campfield/ticketoffice/internal/repository"
)

// PaymentHandler covers the after-commit payment lifecycle: the
// gateway settlement boundary and buyer-side listing/cancellation.
type PaymentHandler struct {
	Payments *repository.PaymentRepo
}

func NewPaymentHandler(p *repository.PaymentRepo) *PaymentHandler {
	return &PaymentHandler{Payments: p}
}

// List returns the caller's active payments, newest first.
func (h *PaymentHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	payments, err := h.Payments.ListActiveByUser(ctx, getUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, payments)
}

// MarkPaid settles a pending payment and marks its tickets paid.
// This is the gateway callback boundary; duplicate callbacks get a
// 409 and change nothing.
func (h *PaymentHandler) MarkPaid(c echo.Context) error {
	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || paymentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Payments.MarkPaid(ctx, paymentID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment is not pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "settle failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Cancel voids the caller's own pending payment.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || paymentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Payments.Cancel(ctx, paymentID, getUserID(c)); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment is not pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
