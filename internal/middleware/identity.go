package middleware

// identity.go exposes the values JWTAuth stores in the Echo context.

import (
	"github.com/labstack/echo/v4"
)

// StaffID returns the authenticated staff member, or "" on unauthenticated
// routes.
func StaffID(c echo.Context) string {
	s, _ := c.Get(ctxStaffID).(string)
	return s
}

// Role returns the authenticated staff member's upper-cased role.
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}
