package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/webshop-checkout/internal/checkout"
	"github.com/iliyamo/webshop-checkout/internal/middleware"
	"github.com/iliyamo/webshop-checkout/internal/model"
)

// CheckoutHandler starts payment for a cart.
type CheckoutHandler struct {
	Assembler Checkouter
}

func NewCheckoutHandler(a Checkouter) *CheckoutHandler { return &CheckoutHandler{Assembler: a} }

type checkoutReq struct {
	Lines []model.CartLine `json:"lines"`
	Buyer model.Buyer      `json:"buyer"`
}

// Checkout answers 201 with the payment URL, or 422 with
// {"success": false, "error": "..."} when the cart cannot be bought.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res := h.Assembler.Checkout(c.Request().Context(), checkout.Request{
		ActorID:   middleware.ActorID(c),
		StudentID: middleware.StudentID(c),
		Lines:     req.Lines,
		Buyer:     req.Buyer,
	})
	if !res.Success {
		return c.JSON(http.StatusUnprocessableEntity, res)
	}
	return c.JSON(http.StatusCreated, res)
}
