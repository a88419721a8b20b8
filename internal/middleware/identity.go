package middleware

import "github.com/labstack/echo/v4"

func str(c echo.Context, key string) string {
	s, _ := c.Get(key).(string)
	return s
}

// ActorID returns the authenticated actor, or "" on unauthenticated routes.
func ActorID(c echo.Context) string { return str(c, ctxActorID) }

// Role returns the role claim of the authenticated actor.
func Role(c echo.Context) string { return str(c, ctxRole) }

// StudentID returns the linked student id, if any.
func StudentID(c echo.Context) string { return str(c, ctxStudentID) }
