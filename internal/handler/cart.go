package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/webshop-checkout/internal/ledger"
	"github.com/iliyamo/webshop-checkout/internal/middleware"
	"github.com/iliyamo/webshop-checkout/internal/model"
	"github.com/iliyamo/webshop-checkout/internal/repository"
)

// CartHandler exposes the actor's soft holds.  The cart itself lives on
// the client; these endpoints only keep stock reserved while the buyer
// shops.
type CartHandler struct {
	Products ProductCatalog
	Stock    StockLedger
	Limits   LimitValidator
}

func NewCartHandler(p ProductCatalog, s StockLedger, l LimitValidator) *CartHandler {
	return &CartHandler{Products: p, Stock: s, Limits: l}
}

// List returns the actor's active holds.
func (h *CartHandler) List(c echo.Context) error {
	items := h.Stock.ListReservations(c.Request().Context(), middleware.ActorID(c))
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns the actor's hold on one product.
func (h *CartHandler) Get(c echo.Context) error {
	r := h.Stock.Reservation(c.Request().Context(), c.Param("product_id"), middleware.ActorID(c))
	if r == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active reservation"})
	}
	return c.JSON(http.StatusOK, r)
}

type putItemReq struct {
	Quantity int `json:"quantity"`
}

// Put sets the actor's hold on a product to the requested quantity.  The
// request is refused when it breaks a purchase limit or asks for more than
// is available, counting the actor's current hold as theirs.
func (h *CartHandler) Put(c echo.Context) error {
	var req putItemReq
	if err := c.Bind(&req); err != nil || req.Quantity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be a positive integer"})
	}
	ctx := c.Request().Context()
	actor := middleware.ActorID(c)

	p, err := h.Products.GetByID(ctx, c.Param("product_id"))
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, model.ErrInvalidMetadata) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}
	if err != nil {
		log.Printf("cart: load product %s: %v", c.Param("product_id"), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load product"})
	}

	d, err := h.Limits.Validate(ctx, p.ID, actor, req.Quantity, p)
	if err != nil {
		log.Printf("cart: purchase limit for %s: %v", p.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not check purchase limit"})
	}
	if !d.Allowed {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": d.Reason})
	}

	if p.TracksStock() {
		available := h.Stock.AvailableFor(ctx, p)
		if own := h.Stock.Reservation(ctx, p.ID, actor); own != nil {
			available = min(*p.Stock, available+own.Quantity)
		}
		if available < req.Quantity {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":     fmt.Sprintf("Only %d of %s available", available, p.Title),
				"available": available,
			})
		}
	}

	if out := h.Stock.Reserve(ctx, p.ID, actor, req.Quantity); !out.Success {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": out.Message})
	}
	return c.JSON(http.StatusOK, h.Stock.Reservation(ctx, p.ID, actor))
}

// Delete releases the actor's hold on a product.
func (h *CartHandler) Delete(c echo.Context) error {
	return outcome(c, h.Stock.Release(c.Request().Context(), c.Param("product_id"), middleware.ActorID(c)))
}

// Clear releases every hold of the actor.
func (h *CartHandler) Clear(c echo.Context) error {
	return outcome(c, h.Stock.ReleaseAll(c.Request().Context(), middleware.ActorID(c)))
}

func outcome(c echo.Context, out ledger.Outcome) error {
	if !out.Success {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": out.Message})
	}
	return c.NoContent(http.StatusNoContent)
}
