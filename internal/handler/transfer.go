package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campfield/ticketoffice/internal/service"
)

// TransferHandler moves tickets between accounts and lists past
// transfers.
type TransferHandler struct {
	Transfers *service.TransferService
}

func NewTransferHandler(t *service.TransferService) *TransferHandler {
	return &TransferHandler{Transfers: t}
}

type transferReq struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Transfer hands ticket :id to the account behind the given email.
// Ineligible tickets (not yours, unpaid, non-transferable) redirect
// back to the ticket listing instead of erroring, so the endpoint
// cannot be used to probe ticket ownership.
func (h *TransferHandler) Transfer(c echo.Context) error {
	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || ticketID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	var req transferReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	err = h.Transfers.Transfer(ctx, ticketID, getUserID(c), req.Email, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrTransferIneligible) {
			return c.Redirect(http.StatusSeeOther, "/v1/tickets")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transfer failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Transferred lists the transfers the caller made, newest first.
func (h *TransferHandler) Transferred(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	logs, err := h.Transfers.Transferred(ctx, getUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, logs)
}
