// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campfield/ticketoffice/internal/handler"
	"github.com/campfield/ticketoffice/internal/middleware"
)

// Handlers bundles every handler the router wires up.
type Handlers struct {
	Auth     *handler.AuthHandler
	Basket   *handler.BasketHandler
	Tickets  *handler.TicketHandler
	Checkout *handler.CheckoutHandler
	Receipt  *handler.ReceiptHandler
	Transfer *handler.TransferHandler
	Payment  *handler.PaymentHandler
	Tasks    *handler.TaskHandler
}

// Register wires all routes onto the Echo instance. Three tiers:
// public (health, metrics, catalogue, QR images, gateway callback),
// session-scoped with optional auth (basket and checkout, since
// anonymous buyers check out too), and JWT-protected (everything
// touching an account's tickets and payments).
func Register(e *echo.Echo, h Handlers, jwtSecret string) {
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auth endpoints issue and exchange tokens.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	// Catalogue browsing and the checkout flow work anonymously; a
	// valid bearer token attaches the purchase to the account.
	shop := e.Group("/v1")
	shop.Use(middleware.OptionalAuth(jwtSecret))
	shop.GET("/ticket-types", h.Tickets.ListTypes)
	shop.GET("/basket", h.Basket.Get)
	shop.POST("/basket/items", h.Basket.AddItems)
	shop.POST("/basket/remove", h.Basket.RemoveItem)
	shop.DELETE("/basket", h.Basket.Clear)
	shop.PUT("/basket/currency", h.Basket.SetCurrency)
	shop.PUT("/basket/contact", h.Basket.SetContact)
	shop.PUT("/basket/token", h.Basket.SetToken)
	shop.PUT("/basket/info", h.Basket.SubmitInfo)
	shop.POST("/checkout", h.Checkout.Commit)

	// The QR image is fetched by receipt pages and wallet apps with
	// no credentials; the code itself is the secret.
	e.GET("/v1/receipt/:code/qr", h.Receipt.QR)

	// Gateway settlement callback. In production this sits behind
	// the gateway's IP allowlist or signature check at the edge.
	e.POST("/v1/payments/:id/paid", h.Payment.MarkPaid)

	// Account-scoped endpoints require a valid access token.
	protected := e.Group("/v1")
	protected.Use(middleware.JWTAuth(jwtSecret))
	protected.GET("/me", h.Auth.Me)
	protected.GET("/tickets", h.Tickets.ListMine)
	protected.GET("/receipt", h.Receipt.Get)
	protected.POST("/tickets/:id/transfer", h.Transfer.Transfer)
	protected.GET("/transferred", h.Transfer.Transferred)
	protected.GET("/payments", h.Payment.List)
	protected.POST("/payments/:id/cancel", h.Payment.Cancel)
	protected.GET("/tasks/:name/results", h.Tasks.Results)
}
