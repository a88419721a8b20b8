// Package handler contains the HTTP handlers of the checkout API.  Errors
// are returned as {"error": "..."} with a matching status code.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
