// Package middleware contains reusable HTTP middleware.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the token's subject into the request context.
// Handlers access the authenticated user via c.Get("user_id").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := parseBearer(c, secret)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", uid)
			return next(c)
		}
	}
}

// OptionalAuth injects the user id when a valid Bearer token is
// present and lets the request through anonymously otherwise. A
// malformed token is still rejected; silently downgrading a bad
// token to anonymous would mask client bugs.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" {
				return next(c)
			}
			uid, ok := parseBearer(c, secret)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", uid)
			return next(c)
		}
	}
}

// parseBearer extracts and validates the HS256 token from the
// Authorization header, returning the sub claim as a user id.
func parseBearer(c echo.Context, secret string) (uint64, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return 0, false
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return 0, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	switch sub := claims["sub"].(type) {
	case float64:
		return uint64(sub), true
	case string:
		if parsed, err := strconv.ParseUint(sub, 10, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
