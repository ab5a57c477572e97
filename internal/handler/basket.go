package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/campfield/ticketoffice/internal/basket"
	"github.com/campfield/ticketoffice/internal/model"
	"github.com/campfield/ticketoffice/internal/repository"
	"github.com/campfield/ticketoffice/internal/service"
)

// BasketHandler owns the checkout session endpoints up to the
// commit: item selection, currency, contact details and the info
// forms.
type BasketHandler struct {
	Sessions *basket.Store
	Types    *repository.TicketTypeRepo
	Checkout *service.CheckoutService
}

func NewBasketHandler(s *basket.Store, t *repository.TicketTypeRepo, co *service.CheckoutService) *BasketHandler {
	return &BasketHandler{Sessions: s, Types: t, Checkout: co}
}

type basketLine struct {
	Position int             `json:"position"`
	TypeID   uint64          `json:"type_id"`
	TypeName string          `json:"type_name"`
	Price    decimal.Decimal `json:"price"`
	NeedInfo bool            `json:"needs_info"`
}

type basketResp struct {
	Stage    string          `json:"stage"`
	Currency string          `json:"currency"`
	Lines    []basketLine    `json:"lines"`
	Total    decimal.Decimal `json:"total"`
}

// Get returns the current basket with per-line prices and the
// running total, re-derived from the catalogue on every call.
func (h *BasketHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, sessionToken(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	return c.JSON(http.StatusOK, h.basketResp(ctx, sess))
}

func (h *BasketHandler) basketResp(ctx context.Context, sess *model.CheckoutSession) basketResp {
	resp := basketResp{Stage: sess.Stage, Currency: sess.Currency, Total: decimal.Zero, Lines: []basketLine{}}
	if resp.Currency == "" {
		resp.Currency = service.DefaultCurrency
	}
	lines, total, err := h.Checkout.BasketAndTotal(ctx, sess)
	if err != nil {
		return resp
	}
	resp.Total = total
	for _, l := range lines {
		resp.Lines = append(resp.Lines, basketLine{
			Position: l.Position,
			TypeID:   l.Type.ID,
			TypeName: l.Type.Name,
			Price:    l.Price,
			NeedInfo: l.Type.RequiresForm(),
		})
	}
	return resp
}

type addItemsReq struct {
	TypeID uint64 `json:"type_id"`
	Count  int    `json:"count"`
}

// AddItems appends count units of a ticket type to the basket. The
// type must be on sale (window open, token satisfied) and the
// per-user limit is enforced against basket contents plus already
// owned tickets when the caller is signed in.
func (h *BasketHandler) AddItems(c echo.Context) error {
	var req addItemsReq
	if err := c.Bind(&req); err != nil || req.TypeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type_id required"})
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, sessionToken(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	types, err := h.Types.GetByIDs(ctx, []uint64{req.TypeID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "catalogue load failed"})
	}
	t, ok := types[req.TypeID]
	if !ok || !t.OnSale(time.Now().UTC(), sess.TicketToken) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket type not available"})
	}

	if t.UserLimit > 0 {
		held := req.Count
		for _, id := range sess.Basket {
			if id == req.TypeID {
				held++
			}
		}
		if uid := getUserID(c); uid != 0 {
			owned, err := h.Types.CountOwnedByUser(ctx, req.TypeID, uid)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "limit check failed"})
			}
			held += owned
		}
		if held > t.UserLimit {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "ticket limit reached"})
		}
	}

	for i := 0; i < req.Count; i++ {
		sess.Basket = append(sess.Basket, req.TypeID)
	}
	// Changing the basket invalidates previously submitted info.
	sess.Info = nil
	if err := h.Sessions.Advance(ctx, sess, model.StageSelecting); err != nil {
		return badTransition(c, err)
	}
	return c.JSON(http.StatusOK, h.basketResp(ctx, sess))
}

type removeItemReq struct {
	Position int `json:"position"`
}

// RemoveItem deletes one basket entry by position. Info entries are
// dropped because positions shift.
func (h *BasketHandler) RemoveItem(c echo.Context) error {
	var req removeItemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, sessionToken(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	if req.Position < 0 || req.Position >= len(sess.Basket) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no such basket position"})
	}
	sess.Basket = append(sess.Basket[:req.Position], sess.Basket[req.Position+1:]...)
	sess.Info = nil
	if err := h.Sessions.Advance(ctx, sess, model.StageSelecting); err != nil {
		return badTransition(c, err)
	}
	return c.JSON(http.StatusOK, h.basketResp(ctx, sess))
}

// Clear abandons the checkout session outright.
func (h *BasketHandler) Clear(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.Delete(ctx, sessionToken(c)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type currencyReq struct {
	Currency string `json:"currency"`
}

// SetCurrency switches the checkout currency. Only currencies the
// catalogue actually prices in are accepted.
func (h *BasketHandler) SetCurrency(c echo.Context) error {
	var req currencyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency != "GBP" && currency != "EUR" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported currency"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, sessionToken(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	sess.Currency = currency
	if err := h.Sessions.Put(ctx, sess); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session save failed"})
	}
	return c.JSON(http.StatusOK, h.basketResp(ctx, sess))
}

type contactReq struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SetContact captures the anonymous buyer's contact details for
// implicit signup at commit time. Signed-in buyers never need this.
func (h *BasketHandler) SetContact(c echo.Context) error {
	var req contactReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, sessionToken(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	sess.AnonymousEmail = email
	sess.AnonymousName = name
	if err := h.Sessions.Put(ctx, sess); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session save failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type ticketTokenReq struct {
	Token string `json:"token"`
}

// SetToken stores an access token that unlocks gated ticket types
// for the rest of the session. A token no type recognises clears
// the stored one instead, so stale tokens stop unlocking quietly.
func (h *BasketHandler) SetToken(c echo.Context) error {
	var req ticketTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	token := strings.TrimSpace(req.Token)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, sessionToken(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	if token != "" {
		types, err := h.Types.List(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "catalogue load failed"})
		}
		known := false
		for _, t := range types {
			if t.Token != nil && *t.Token == token {
				known = true
				break
			}
		}
		if !known {
			token = ""
		}
	}
	sess.TicketToken = token
	if err := h.Sessions.Put(ctx, sess); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session save failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type submitInfoReq struct {
	Entries []model.InfoEntry `json:"entries"`
}

// SubmitInfo stores the per-ticket info forms and moves the session
// to ready-to-pay. The entries are validated for real at commit
// time against the re-derived basket; this endpoint only checks the
// stage transition is legal.
func (h *BasketHandler) SubmitInfo(c echo.Context) error {
	var req submitInfoReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, sessionToken(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	if len(sess.Basket) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "basket is empty"})
	}
	if err := sess.Advance(model.StageInfoEntry); err != nil {
		return badTransition(c, err)
	}
	sess.Info = req.Entries
	if err := h.Sessions.Advance(ctx, sess, model.StageReadyToPay); err != nil {
		return badTransition(c, err)
	}
	return c.JSON(http.StatusOK, h.basketResp(ctx, sess))
}

func badTransition(c echo.Context, err error) error {
	if err == model.ErrBadTransition {
		return c.JSON(http.StatusConflict, echo.Map{"error": "checkout already completed, start a new basket"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session save failed"})
}
