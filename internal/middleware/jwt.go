// Package middleware contains the Echo middleware shared by the routes:
// token authentication, role checks, rate limiting and response caching.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/webshop-checkout/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxActorID   = "actor_id"
	ctxRole      = "role"
	ctxStudentID = "student_id"
)

// JWTAuth validates the Bearer token and stores the actor id, role and
// student id in the request context.  Handlers read them back through
// ActorID, Role and StudentID.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ctxActorID, claims.Subject)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxStudentID, claims.StudentID)
			return next(c)
		}
	}
}
