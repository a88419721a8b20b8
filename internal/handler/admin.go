package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AdminHandler exposes maintenance operations.
type AdminHandler struct {
	Stock StockLedger
}

func NewAdminHandler(s StockLedger) *AdminHandler { return &AdminHandler{Stock: s} }

type cleanupReq struct {
	ActorID string `json:"actor_id"`
}

// CleanupReservations deletes the expired holds of one actor.  Expired
// holds never count against stock, so this only reclaims rows; it is
// meant for a scheduled job and is not part of checkout.
func (h *AdminHandler) CleanupReservations(c echo.Context) error {
	var req cleanupReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.ActorID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "actor_id required"})
	}
	n := h.Stock.CleanupExpired(c.Request().Context(), strings.TrimSpace(req.ActorID))
	return c.JSON(http.StatusOK, echo.Map{"actor_id": req.ActorID, "removed": n})
}
