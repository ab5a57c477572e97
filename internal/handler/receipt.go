package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campfield/ticketoffice/internal/service"
)

// ReceiptHandler renders receipts and serves check-in QR images.
type ReceiptHandler struct {
	Receipts *service.ReceiptService
}

func NewReceiptHandler(r *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{Receipts: r}
}

// Get renders the caller's receipt. Query flags select the output:
// ?pdf=1 for PDF, ?png=1 to link QR images instead of inlining SVG,
// ?table=1 for the compact layout, ?ids=1,2,3 to restrict the set.
func (h *ReceiptHandler) Get(c echo.Context) error {
	opts := service.RenderOptions{
		PDF:   c.QueryParam("pdf") != "",
		PNG:   c.QueryParam("png") != "",
		Table: c.QueryParam("table") != "",
	}
	ids := parseIDList(c.QueryParam("ids"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	doc, err := h.Receipts.Render(ctx, getUserID(c), ids, opts)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no tickets"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "render failed"})
	}
	if opts.PDF {
		c.Response().Header().Set("Content-Disposition", "attachment; filename=tickets.pdf")
	}
	return c.Blob(http.StatusOK, doc.ContentType, doc.Body)
}

// QR serves the check-in QR code for one ticket as a PNG. The code
// itself is the only credential; anything outside the safe alphabet
// is a plain 404.
func (h *ReceiptHandler) QR(c echo.Context) error {
	png, err := h.Receipts.QRPNG(c.Param("code"), 256)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encode failed"})
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
