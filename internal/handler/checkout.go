package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campfield/ticketoffice/internal/model"
	"github.com/campfield/ticketoffice/internal/service"
)

// CheckoutHandler exposes the commit endpoint. Everything before it
// lives on BasketHandler; everything after on PaymentHandler.
type CheckoutHandler struct {
	Checkout *service.CheckoutService
}

func NewCheckoutHandler(co *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{Checkout: co}
}

type commitReq struct {
	Method string `json:"method"`
}

// Commit executes the checkout for the caller's session. Signed-in
// callers buy under their account; anonymous callers need contact
// details in the session and get an account created for them.
func (h *CheckoutHandler) Commit(c echo.Context) error {
	var req commitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	payment, err := h.Checkout.Commit(ctx, sessionToken(c), getUserID(c), req.Method)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidMethod):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment method"})
		case errors.Is(err, service.ErrEmptyBasket):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "basket is empty"})
		case errors.Is(err, service.ErrInfoMismatch):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket info does not match basket"})
		case errors.Is(err, service.ErrMissingContact):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "contact details required"})
		case errors.Is(err, service.ErrDuplicateAccount):
			// The basket is preserved; the buyer signs in and retries.
			return c.JSON(http.StatusConflict, echo.Map{"error": "account already exists, sign in to continue"})
		case errors.Is(err, model.ErrBadTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "checkout already completed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
	}
	return c.JSON(http.StatusCreated, payment)
}
