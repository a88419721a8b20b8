// Package router registers the HTTP routes of the checkout API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/webshop-checkout/internal/handler"
	"github.com/iliyamo/webshop-checkout/internal/middleware"
	"github.com/iliyamo/webshop-checkout/internal/utils"
)

// Handlers bundles every handler the routes need.
type Handlers struct {
	Auth     *handler.AuthHandler
	Catalog  *handler.CatalogHandler
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Admin    *handler.AdminHandler
}

// Options carries the cross-cutting middleware.  Cache wraps the public
// product list and RateLimit wraps checkout.
type Options struct {
	JWTSecret string
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers the health check only.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers endpoints that need no token: session
// creation, admin login and the catalog.
func RegisterPublic(e *echo.Echo, h Handlers, opt Options) {
	e.POST("/v1/sessions", h.Auth.CreateSession)
	e.POST("/v1/auth/admin", h.Auth.AdminLogin)

	e.GET("/v1/products", h.Catalog.ListProducts, orNoop(opt.Cache))
	e.GET("/v1/products/:id/stock", h.Catalog.GetStock)
}

// RegisterShopper registers the cart, checkout and order endpoints.  They
// all act on the actor named by the token.
func RegisterShopper(e *echo.Echo, h Handlers, opt Options) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(opt.JWTSecret))
	g.Use(middleware.RequireRole(utils.RoleShopper))

	g.GET("/cart", h.Cart.List)
	g.DELETE("/cart", h.Cart.Clear)
	g.GET("/cart/items/:product_id", h.Cart.Get)
	g.PUT("/cart/items/:product_id", h.Cart.Put)
	g.DELETE("/cart/items/:product_id", h.Cart.Delete)

	g.POST("/checkout", h.Checkout.Checkout, orNoop(opt.RateLimit))
	g.GET("/orders/:id", h.Orders.Get)
}

// RegisterAdmin registers maintenance endpoints for ADMIN tokens.
func RegisterAdmin(e *echo.Echo, h Handlers, opt Options) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(opt.JWTSecret))
	g.Use(middleware.RequireRole(utils.RoleAdmin))
	g.POST("/reservations/cleanup", h.Admin.CleanupReservations)
}

func orNoop(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}
