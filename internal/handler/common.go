// Package handler contains the HTTP handlers for the ticket office
// API. Handlers translate service sentinel errors into HTTP
// responses and never reach into the database directly.
package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campfield/ticketoffice/internal/basket"
)

// checkoutTokenHeader carries the opaque checkout session token.
// Browser clients fall back to the cookie of the same value.
const (
	checkoutTokenHeader = "X-Checkout-Token"
	checkoutTokenCookie = "checkout_token"
)

// getUserID extracts the authenticated user id injected by the JWT
// middleware. Zero means anonymous.
func getUserID(c echo.Context) uint64 {
	v := c.Get("user_id")
	if v == nil {
		return 0
	}
	id, _ := v.(uint64)
	return id
}

// sessionToken returns the checkout session token from the request,
// minting a fresh one when the client has none yet. The token is
// echoed back on the response either way so clients can persist it.
func sessionToken(c echo.Context) string {
	token := c.Request().Header.Get(checkoutTokenHeader)
	if token == "" {
		if cookie, err := c.Cookie(checkoutTokenCookie); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		token = basket.NewToken()
	}
	c.Response().Header().Set(checkoutTokenHeader, token)
	c.SetCookie(&http.Cookie{
		Name:     checkoutTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	return token
}

// parseIDList parses a comma-separated id list query parameter.
// Malformed entries are skipped.
func parseIDList(raw string) []uint64 {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		out = append(out, id)
	}
	return out
}
