package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/campfield/ticketoffice/internal/basket"
	"github.com/campfield/ticketoffice/internal/repository"
)

// TicketHandler serves the public catalogue and the signed-in
// ticket listing.
type TicketHandler struct {
	Types    *repository.TicketTypeRepo
	Tickets  *repository.TicketRepo
	Sessions *basket.Store
}

func NewTicketHandler(t *repository.TicketTypeRepo, tk *repository.TicketRepo, s *basket.Store) *TicketHandler {
	return &TicketHandler{Types: t, Tickets: tk, Sessions: s}
}

type typeResp struct {
	ID           uint64                     `json:"id"`
	Name         string                     `json:"name"`
	Admits       string                     `json:"admits"`
	UserLimit    int                        `json:"user_limit"`
	Transferable bool                       `json:"transferable"`
	NeedsInfo    bool                       `json:"needs_info"`
	Prices       map[string]decimal.Decimal `json:"prices"`
}

// ListTypes returns the on-sale catalogue in display order. Types
// gated behind an access token only appear when the caller's
// session carries the matching token.
func (h *TicketHandler) ListTypes(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, sessionToken(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	types, err := h.Types.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "catalogue load failed"})
	}

	now := time.Now().UTC()
	out := make([]typeResp, 0, len(types))
	for _, t := range types {
		if !t.OnSale(now, sess.TicketToken) {
			continue
		}
		out = append(out, typeResp{
			ID:           t.ID,
			Name:         t.Name,
			Admits:       t.Admits,
			UserLimit:    t.UserLimit,
			Transferable: t.IsTransferable,
			NeedsInfo:    t.RequiresForm(),
			Prices:       t.Prices,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// ListMine returns all of the caller's tickets, newest first.
func (h *TicketHandler) ListMine(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tickets, err := h.Tickets.ListByUser(ctx, getUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, tickets)
}
