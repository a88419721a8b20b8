package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/webshop-checkout/internal/middleware"
	"github.com/iliyamo/webshop-checkout/internal/repository"
)

// OrderHandler lets an actor follow their own orders.
type OrderHandler struct {
	Orders OrderReader
}

func NewOrderHandler(o OrderReader) *OrderHandler { return &OrderHandler{Orders: o} }

// Get returns one order of the current actor.
func (h *OrderHandler) Get(c echo.Context) error {
	o, err := h.Orders.GetByIDForActor(c.Request().Context(), c.Param("id"), middleware.ActorID(c))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case err != nil:
		log.Printf("orders: load %s: %v", c.Param("id"), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load order"})
	}
	return c.JSON(http.StatusOK, o)
}
